package log

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"navmotion.ai/internal/sim/world"
)

func TestTickAndLaunchLogsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ticks := NewTickLogger(dir)
	launches := NewLaunchLogger(dir)
	out := Tee(ticks, launches)

	entries := []world.TickLogEntry{
		{Tick: 0, Units: 2, Digest: "a", Launches: []world.LaunchEntry{
			{Unit: 1, SplineID: 10, Generator: "POINT", DurationMs: 1400, Points: [][3]float64{{0, 0, 0}, {10, 0, 0}}},
			{Unit: 2, SplineID: 11, Generator: "RANDOM", DurationMs: 800, Points: [][3]float64{{5, 5, 0}, {7, 5, 0}}},
		}},
		{Tick: 1, Units: 2, Digest: "b", Informs: []world.InformEntry{{Unit: 1, Kind: "POINT", ID: 7}}},
	}
	for _, e := range entries {
		if err := out.WriteTick(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := ticks.Close(); err != nil {
		t.Fatalf("close ticks: %v", err)
	}
	if err := launches.Close(); err != nil {
		t.Fatalf("close launches: %v", err)
	}

	files, err := Files(filepath.Join(dir, "ticks"), "ticks")
	if err != nil || len(files) != 1 {
		t.Fatalf("tick files: %v %v", files, err)
	}
	var got []world.TickLogEntry
	if err := ReadTicks(files[0], func(e world.TickLogEntry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("read ticks: %v", err)
	}
	if len(got) != 2 || got[1].Informs[0].ID != 7 || len(got[0].Launches) != 2 {
		t.Fatalf("ticks: %+v", got)
	}

	files, err = Files(filepath.Join(dir, "launches"), "launches")
	if err != nil || len(files) != 1 {
		t.Fatalf("launch files: %v %v", files, err)
	}
	var recs []LaunchRecord
	if err := ReadLaunches(files[0], func(r LaunchRecord) error {
		recs = append(recs, r)
		return nil
	}); err != nil {
		t.Fatalf("read launches: %v", err)
	}
	if len(recs) != 2 || recs[1].Generator != "RANDOM" || recs[1].Tick != 0 || recs[0].Points[1][0] != 10 {
		t.Fatalf("launches: %+v", recs)
	}
}

func TestWriterRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	var closed []string
	w := NewJSONLZstdWriter(dir, "ticks", WithOnClose(func(p string) { closed = append(closed, p) }))
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.Write(map[string]int{"tick": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"tick": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir, "ticks")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "ticks-2026-03-01-10.jsonl.zst"),
		filepath.Join(dir, "ticks-2026-03-01-11.jsonl.zst"),
	}
	if len(files) != 2 || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("files: %v", files)
	}
	if len(closed) != 2 || closed[0] != want[0] || closed[1] != want[1] {
		t.Fatalf("closed: %v", closed)
	}
	for _, f := range files {
		n := 0
		if err := ReadLines(f, func([]byte) error { n++; return nil }); err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if n != 1 {
			t.Fatalf("%s: %d lines", f, n)
		}
	}
}

func TestWriterAppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	at := func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	for i := 0; i < 2; i++ {
		w := NewJSONLZstdWriter(dir, "ticks")
		w.now = at
		if err := w.Write(map[string]int{"tick": i}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	files, _ := Files(dir, "ticks")
	n := 0
	if err := ReadLines(files[0], func([]byte) error { n++; return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 2 {
		t.Fatalf("lines after reopen: %d", n)
	}
}

type failing struct{ calls int }

func (f *failing) WriteTick(world.TickLogEntry) error {
	f.calls++
	return errors.New("disk full")
}

func TestTeeKeepsGoingAfterError(t *testing.T) {
	a, b := &failing{}, &failing{}
	if err := Tee(a, b).WriteTick(world.TickLogEntry{}); err == nil {
		t.Fatalf("expected error")
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("calls: %d %d", a.calls, b.calls)
	}
}
