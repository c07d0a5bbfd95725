// This file is part of FM2KNet.
//
// FM2KNet is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// FM2KNet is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with FM2KNet.  If not, see <https://www.gnu.org/licenses/>.

package store

import (
	"database/sql"
	"time"

	"github.com/fm2knet/fm2knet/curated"
	"github.com/fm2knet/fm2knet/rollback"
	"github.com/fm2knet/fm2knet/telemetry"

	_ "github.com/mattn/go-sqlite3"
)

// StoreError is the pattern for all errors returned by the store package.
const StoreError = "store: %v"

const initSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started INTEGER NOT NULL,
	ended INTEGER,
	role TEXT NOT NULL,
	frames INTEGER DEFAULT 0,
	rollbacks INTEGER DEFAULT 0,
	max_rollback INTEGER DEFAULT 0,
	desyncs INTEGER DEFAULT 0,
	avg_ping_ms REAL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS desyncs (
	session_id INTEGER NOT NULL REFERENCES sessions(id),
	frame INTEGER NOT NULL,
	peer INTEGER NOT NULL,
	local_checksum INTEGER NOT NULL,
	remote_checksum INTEGER NOT NULL
);`

// Desync is a row in the desyncs table, joined with the role of the session
// it belongs to.
type Desync struct {
	Session        int64
	Role           string
	Frame          uint32
	Peer           int
	LocalChecksum  uint32
	RemoteChecksum uint32
}

// Store is an open telemetry database.
type Store struct {
	db *sql.DB
}

// Open the database at path, creating it if necessary.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, curated.Errorf(StoreError, err)
	}

	if _, err := db.Exec(initSQL); err != nil {
		db.Close()
		return nil, curated.Errorf(StoreError, err)
	}

	return &Store{db: db}, nil
}

// Close the database.
func (st *Store) Close() error {
	if err := st.db.Close(); err != nil {
		return curated.Errorf(StoreError, err)
	}
	return nil
}

// BeginSession adds a new session row and returns its ID. The role is
// a free description, normally "host", "guest" or "offline".
func (st *Store) BeginSession(role string) (int64, error) {
	res, err := st.db.Exec(`INSERT INTO sessions (started, role) VALUES (?, ?);`,
		time.Now().UnixMilli(), role)
	if err != nil {
		return 0, curated.Errorf(StoreError, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, curated.Errorf(StoreError, err)
	}

	return id, nil
}

// RecordDesync adds a desync event to the session. Events of any other kind
// are ignored.
func (st *Store) RecordDesync(id int64, ev rollback.SessionEvent) error {
	if ev.Kind != rollback.DesyncDetected {
		return nil
	}

	_, err := st.db.Exec(`INSERT INTO desyncs (
		session_id,
		frame,
		peer,
		local_checksum,
		remote_checksum
	) VALUES (?, ?, ?, ?, ?);`, id, ev.Frame, int(ev.Handle), ev.Local, ev.Remote)
	if err != nil {
		return curated.Errorf(StoreError, err)
	}

	return nil
}

// EndSession completes the session row with the summary in the report.
func (st *Store) EndSession(id int64, r telemetry.Report) error {
	res, err := st.db.Exec(`UPDATE sessions SET
		ended = ?,
		frames = ?,
		rollbacks = ?,
		max_rollback = ?,
		desyncs = ?,
		avg_ping_ms = ?
	WHERE id = ?;`,
		time.Now().UnixMilli(), r.Frames, r.Rollbacks, r.MaxRollback, r.Desyncs,
		float64(r.AvgPing)/float64(time.Millisecond), id)
	if err != nil {
		return curated.Errorf(StoreError, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return curated.Errorf(StoreError, err)
	}
	if n == 0 {
		return curated.Errorf(StoreError, "no such session")
	}

	return nil
}

// Summary is a row in the sessions table.
type Summary struct {
	ID          int64
	Started     time.Time
	Ended       time.Time
	Role        string
	Frames      uint32
	Rollbacks   int
	MaxRollback int
	Desyncs     int
	AvgPingMS   float64
}

// Session returns the summary for the session ID.
func (st *Store) Session(id int64) (Summary, error) {
	var s Summary
	var started int64
	var ended sql.NullInt64

	err := st.db.QueryRow(`SELECT id, started, ended, role, frames, rollbacks,
		max_rollback, desyncs, avg_ping_ms FROM sessions WHERE id = ?;`, id).Scan(
		&s.ID, &started, &ended, &s.Role, &s.Frames, &s.Rollbacks,
		&s.MaxRollback, &s.Desyncs, &s.AvgPingMS)
	if err != nil {
		return Summary{}, curated.Errorf(StoreError, err)
	}

	s.Started = time.UnixMilli(started)
	if ended.Valid {
		s.Ended = time.UnixMilli(ended.Int64)
	}

	return s, nil
}

// RecentDesyncs returns up to n of the most recently recorded desyncs, most
// recent first.
func (st *Store) RecentDesyncs(n int) ([]Desync, error) {
	rows, err := st.db.Query(`SELECT d.session_id, s.role, d.frame, d.peer,
		d.local_checksum, d.remote_checksum
	FROM desyncs d JOIN sessions s ON s.id = d.session_id
	ORDER BY d.rowid DESC LIMIT ?;`, n)
	if err != nil {
		return nil, curated.Errorf(StoreError, err)
	}
	defer rows.Close()

	var r []Desync

	for rows.Next() {
		var d Desync
		if err := rows.Scan(&d.Session, &d.Role, &d.Frame, &d.Peer, &d.LocalChecksum, &d.RemoteChecksum); err != nil {
			return nil, curated.Errorf(StoreError, err)
		}
		r = append(r, d)
	}

	if err := rows.Err(); err != nil {
		return nil, curated.Errorf(StoreError, err)
	}

	return r, nil
}
