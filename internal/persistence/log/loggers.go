package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"navmotion.ai/internal/sim/world"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst. A file is only a complete zstd stream
// after rotation or Close.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time
	onClose func(path string)

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// Option configures a JSONLZstdWriter.
type Option func(*JSONLZstdWriter)

// WithOnClose calls fn with the path of every file once it is complete,
// on hourly rotation and on Close.
func WithOnClose(fn func(path string)) Option {
	return func(w *JSONLZstdWriter) { w.onClose = fn }
}

func NewJSONLZstdWriter(baseDir, prefix string, opts ...Option) *JSONLZstdWriter {
	w := &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	var closed string
	if w.f != nil {
		closed = w.f.Name()
	}
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	if closed != "" && err1 == nil && w.onClose != nil {
		w.onClose(closed)
	}
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TickLogger writes one JSONL entry per tick (compressed).
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(worldDir string, opts ...Option) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "ticks"), "ticks", opts...)}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// LaunchRecord is one launched curve, flattened with its tick.
type LaunchRecord struct {
	Tick uint64 `json:"tick"`
	world.LaunchEntry
}

// LaunchLogger writes one JSONL entry per launched curve (compressed).
type LaunchLogger struct{ w *JSONLZstdWriter }

func NewLaunchLogger(worldDir string, opts ...Option) *LaunchLogger {
	return &LaunchLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "launches"), "launches", opts...)}
}

func (l *LaunchLogger) WriteTick(v world.TickLogEntry) error {
	for _, e := range v.Launches {
		if err := l.w.Write(LaunchRecord{Tick: v.Tick, LaunchEntry: e}); err != nil {
			return err
		}
	}
	return nil
}

func (l *LaunchLogger) Close() error { return l.w.Close() }

type tee []world.TickLogger

// Tee fans every tick out to all loggers. Every logger sees the tick even
// when an earlier one fails.
func Tee(loggers ...world.TickLogger) world.TickLogger { return tee(loggers) }

func (t tee) WriteTick(v world.TickLogEntry) error {
	var errs []error
	for _, l := range t {
		if err := l.WriteTick(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
