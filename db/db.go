package db

import (
	"database/sql"
	"embed"
	"errors"
	"os"
	"path/filepath"
	"time"

	"nbahighlights/nba"
	"nbahighlights/utils"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is the local roster cache. The player list from the stats service
// is large and rarely changes, so it is kept between runs.
type Store struct {
	db *sqlx.DB
}

func Open(path string) (*Store, error) {
	if err := setupDatabase(path); err != nil {
		return nil, err
	}
	if err := runMigrations(path); err != nil {
		return nil, err
	}
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func setupDatabase(path string) error {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return utils.ErrorWithTrace(err)
			}
		}
		file, err := os.Create(path)
		if err != nil {
			return utils.ErrorWithTrace(err)
		}
		return file.Close()
	} else if err != nil {
		return utils.ErrorWithTrace(err)
	}
	return nil
}

func runMigrations(path string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite3://"+path)
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return utils.ErrorWithTrace(err)
	}
	return nil
}

type dbPlayer struct {
	ID       int    `db:"id"`
	FullName string `db:"full_name"`
	Position int    `db:"position"`
}

// ReplacePlayers swaps the cached roster for players, keeping their order.
func (s *Store) ReplacePlayers(season string, players []nba.Player, fetchedAt time.Time) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM players`); err != nil {
		return utils.ErrorWithTrace(err)
	}

	query := `
		REPLACE INTO players (id, full_name, position)
		VALUES (:id, :full_name, :position)
	`
	for i, p := range players {
		row := dbPlayer{ID: p.ID, FullName: p.FullName, Position: i}
		if _, err := tx.NamedExec(query, row); err != nil {
			return utils.ErrorWithTrace(err)
		}
	}

	if _, err := tx.Exec(
		`REPLACE INTO roster_meta (id, season, fetched_at) VALUES (1, ?, ?)`,
		season, fetchedAt.Unix(),
	); err != nil {
		return utils.ErrorWithTrace(err)
	}
	return tx.Commit()
}

func (s *Store) SelectPlayers() ([]nba.Player, error) {
	players := []nba.Player{}
	if err := s.db.Select(&players, `SELECT id, full_name FROM players ORDER BY position`); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	return players, nil
}

// RosterFetchedAt reports when the cached roster for season was stored.
// ok is false when nothing is cached for that season.
func (s *Store) RosterFetchedAt(season string) (fetchedAt time.Time, ok bool, err error) {
	var unix int64
	err = s.db.Get(&unix, `SELECT fetched_at FROM roster_meta WHERE id = 1 AND season = ?`, season)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, utils.ErrorWithTrace(err)
	}
	return time.Unix(unix, 0), true, nil
}
