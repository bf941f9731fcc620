package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"navmotion.ai/internal/sim/tuning"
	"navmotion.ai/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index of movement telemetry. Writes
// are queued and applied in batched transactions by one goroutine; the
// compressed JSONL logs stay the source of truth.
type SQLiteIndex struct {
	db  *sql.DB
	log *zap.Logger

	ch   chan world.TickLogEntry
	wg   sync.WaitGroup
	once sync.Once

	closed    atomic.Bool
	dropTicks atomic.Uint64
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTickTotal uint64 `json:"drop_tick_total"`
}

func OpenSQLite(path string, log *zap.Logger) (*SQLiteIndex, error) {
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

	s := &SQLiteIndex{
		db:  db,
		log: log,
		ch:  make(chan world.TickLogEntry, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	log.Info("movement index open", zap.String("path", path))
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
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
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			units INTEGER NOT NULL,
			launches INTEGER NOT NULL,
			informs INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS launches (
			tick INTEGER NOT NULL,
			unit INTEGER NOT NULL,
			spline_id INTEGER NOT NULL,
			generator TEXT NOT NULL,
			flags INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			points_json TEXT NOT NULL,
			PRIMARY KEY (tick, unit)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_launches_unit_tick ON launches(unit, tick);`,
		`CREATE TABLE IF NOT EXISTS informs (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			unit INTEGER NOT NULL,
			kind TEXT NOT NULL,
			inform_id INTEGER NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_informs_unit_tick ON informs(unit, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- entry:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTicks.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTickTotal: s.dropTicks.Load(),
	}
}

// UpsertTuning stores the tuning actually applied, keyed by its digest.
func (s *SQLiteIndex) UpsertTuning(ctx context.Context, tune tuning.Tuning) error {
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"tuning", hex.EncodeToString(sum[:]), string(b), now,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// LaunchRow is one indexed launch.
type LaunchRow struct {
	Tick uint64 `json:"tick"`
	world.LaunchEntry
}

// UnitLaunches returns the most recent launches of a unit, newest first.
func (s *SQLiteIndex) UnitLaunches(ctx context.Context, unit uint64, limit int) ([]LaunchRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT tick,spline_id,generator,flags,duration_ms,points_json FROM launches
		 WHERE unit=? ORDER BY tick DESC LIMIT ?`, int64(unit), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LaunchRow
	for rows.Next() {
		var (
			r      LaunchRow
			tick   int64
			points string
		)
		if err := rows.Scan(&tick, &r.SplineID, &r.Generator, &r.Flags, &r.DurationMs, &points); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		r.Unit = unit
		if err := json.Unmarshal([]byte(points), &r.Points); err != nil {
			return nil, fmt.Errorf("tick %d points: %w", tick, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TickDigest returns the recorded state digest of a tick.
func (s *SQLiteIndex) TickDigest(ctx context.Context, tick uint64) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM ticks WHERE tick=?`, int64(tick)).Scan(&d)
	return d, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,units,launches,informs) VALUES(?,?,?,?,?)`)
	insertLaunch, _ := s.db.Prepare(`INSERT OR REPLACE INTO launches(tick,unit,spline_id,generator,flags,duration_ms,points_json) VALUES(?,?,?,?,?,?,?)`)
	insertInform, _ := s.db.Prepare(`INSERT OR REPLACE INTO informs(tick,seq,unit,kind,inform_id) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertLaunch, insertInform} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()
	if insertTick == nil || insertLaunch == nil || insertInform == nil {
		s.log.Error("movement index: prepare failed; indexing disabled")
		for range s.ch {
		}
		return
	}

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.log.Warn("movement index commit", zap.Error(err))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		s.log.Warn("movement index write", zap.Error(err))
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for e := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		if err := s.writeEntry(tx, insertTick, insertLaunch, insertInform, e); err != nil {
			rollback(err)
			continue
		}
		opCount += 1 + len(e.Launches) + len(e.Informs)
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

func (s *SQLiteIndex) writeEntry(tx *sql.Tx, insertTick, insertLaunch, insertInform *sql.Stmt, e world.TickLogEntry) error {
	tick := int64(e.Tick)
	if _, err := tx.Stmt(insertTick).Exec(tick, e.Digest, e.Units, len(e.Launches), len(e.Informs)); err != nil {
		return err
	}
	for _, l := range e.Launches {
		points, _ := json.Marshal(l.Points)
		if _, err := tx.Stmt(insertLaunch).Exec(tick, int64(l.Unit), l.SplineID, l.Generator, l.Flags, l.DurationMs, string(points)); err != nil {
			return err
		}
	}
	for i, in := range e.Informs {
		if _, err := tx.Stmt(insertInform).Exec(tick, i, int64(in.Unit), in.Kind, in.ID); err != nil {
			return err
		}
	}
	return nil
}
