package waypoints

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store is read-only waypoint storage as seen by movement generators.
type Store interface {
	Path(ctx context.Context, id uint32) (Path, error)
}

type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
}

func OpenSQLite(path string, log *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("waypoint store open", zap.String("path", path))
	return &SQLiteStore{db: db, log: log}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS paths (
			id INTEGER PRIMARY KEY,
			repeating INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS nodes (
			path_id INTEGER NOT NULL REFERENCES paths(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			node_id INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			orientation REAL,
			delay_ms INTEGER NOT NULL,
			move_type INTEGER NOT NULL,
			PRIMARY KEY (path_id, seq)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Save replaces the stored path with the same id.
func (s *SQLiteStore) Save(ctx context.Context, p Path) error {
	if err := p.Validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM paths WHERE id = ?`, p.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO paths(id, repeating) VALUES(?, ?)`, p.ID, p.Repeating); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO nodes(path_id, seq, node_id, x, y, z, orientation, delay_ms, move_type)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, n := range p.Nodes {
		var o sql.NullFloat64
		if n.Orientation != nil {
			o = sql.NullFloat64{Float64: *n.Orientation, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, p.ID, i, n.ID, n.X, n.Y, n.Z, o, n.DelayMs, n.MoveType); err != nil {
			return fmt.Errorf("path %d node %d: %w", p.ID, n.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Path(ctx context.Context, id uint32) (Path, error) {
	p := Path{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT repeating FROM paths WHERE id = ?`, id).Scan(&p.Repeating)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("%w: %d", ErrPathNotFound, id)
	}
	if err != nil {
		return p, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT node_id, x, y, z, orientation, delay_ms, move_type
		FROM nodes WHERE path_id = ? ORDER BY seq`, id)
	if err != nil {
		return p, err
	}
	defer rows.Close()
	for rows.Next() {
		var n Node
		var o sql.NullFloat64
		if err := rows.Scan(&n.ID, &n.X, &n.Y, &n.Z, &o, &n.DelayMs, &n.MoveType); err != nil {
			return p, err
		}
		if o.Valid {
			v := o.Float64
			n.Orientation = &v
		}
		p.Nodes = append(p.Nodes, n)
	}
	return p, rows.Err()
}

// IDs lists stored path ids in ascending order.
func (s *SQLiteStore) IDs(ctx context.Context) ([]uint32, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM paths ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uint32
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ImportYAML saves every path of a YAML waypoint file.
func (s *SQLiteStore) ImportYAML(ctx context.Context, path string) (int, error) {
	paths, err := LoadYAML(path)
	if err != nil {
		return 0, err
	}
	for _, p := range paths {
		if err := s.Save(ctx, p); err != nil {
			return 0, err
		}
	}
	s.log.Info("waypoints imported", zap.String("file", path), zap.Int("paths", len(paths)))
	return len(paths), nil
}
