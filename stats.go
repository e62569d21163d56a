package netplay

import (
	"database/sql"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const statsInitSQL = `
CREATE TABLE IF NOT EXISTS player_stats (
	name         TEXT PRIMARY KEY,
	kills        INTEGER NOT NULL DEFAULT 0,
	deaths       INTEGER NOT NULL DEFAULT 0,
	last_session TEXT NOT NULL DEFAULT ''
);`

// StatsDB persists per-player match statistics across server restarts.
type StatsDB struct {
	*sql.DB
}

// OpenStats opens (and if needed initializes) the SQLite stats database.
// Use ":memory:" for a throwaway store.
func OpenStats(path string) (*StatsDB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open stats db")
	}
	if _, err := db.Exec(statsInitSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init stats db")
	}
	return &StatsDB{DB: db}, nil
}

// RecordKill credits killer and debits victim in one transaction.
func (db *StatsDB) RecordKill(killer, victim string, session uuid.UUID) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "record kill")
	}
	const upsert = `
INSERT INTO player_stats (name, kills, deaths, last_session) VALUES (?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	kills = kills + excluded.kills,
	deaths = deaths + excluded.deaths,
	last_session = excluded.last_session;`
	if _, err := tx.Exec(upsert, killer, 1, 0, session.String()); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "record kill")
	}
	if _, err := tx.Exec(upsert, victim, 0, 1, session.String()); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "record kill")
	}
	return errors.Wrap(tx.Commit(), "record kill")
}

// PlayerStats returns the lifetime kills and deaths for name. An unknown
// player has zero of both.
func (db *StatsDB) PlayerStats(name string) (kills, deaths uint16, err error) {
	row := db.QueryRow(`SELECT kills, deaths FROM player_stats WHERE name = ?`, name)
	switch err := row.Scan(&kills, &deaths); err {
	case nil, sql.ErrNoRows:
		return kills, deaths, nil
	default:
		return 0, 0, errors.Wrap(err, "player stats")
	}
}
