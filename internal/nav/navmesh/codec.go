package navmesh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const (
	TileMagic   uint32 = 'N'<<24 | 'A'<<16 | 'V'<<8 | 'T'
	TileVersion        = 1

	TileFileExt = ".navtile.zst"
)

type tileFile struct {
	Magic   uint32    `msgpack:"magic"`
	Version int       `msgpack:"version"`
	Tile    *TileData `msgpack:"tile"`
}

func TileFileName(x, y int32) string {
	return fmt.Sprintf("%d_%d%s", x, y, TileFileExt)
}

// EncodeTile writes d as zstd-compressed msgpack.
func EncodeTile(w io.Writer, d *TileData) error {
	if err := d.validate(); err != nil {
		return err
	}
	return encodeRaw(w, tileFile{Magic: TileMagic, Version: TileVersion, Tile: d})
}

func encodeRaw(w io.Writer, f tileFile) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(zw).Encode(f); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

func DecodeTile(r io.Reader) (*TileData, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	var f tileFile
	if err := msgpack.NewDecoder(bufio.NewReader(zr)).Decode(&f); err != nil {
		return nil, err
	}
	if f.Magic != TileMagic {
		return nil, ErrWrongMagic
	}
	if f.Version != TileVersion {
		return nil, fmt.Errorf("version %d: %w", f.Version, ErrWrongVersion)
	}
	if err := f.Tile.validate(); err != nil {
		return nil, err
	}
	return f.Tile, nil
}

func WriteTileFile(path string, d *TileData) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := EncodeTile(f, d); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func ReadTileFile(path string) (*TileData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := DecodeTile(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return d, nil
}

// LoadDir adds every tile file in dir to m. Tiles already present are skipped.
func LoadDir(m *Mesh, dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+TileFileExt))
	if err != nil {
		return 0, err
	}
	sort.Strings(paths)
	n := 0
	for _, p := range paths {
		d, err := ReadTileFile(p)
		if err != nil {
			return n, err
		}
		if _, err := m.AddTile(d); err != nil {
			if errors.Is(err, ErrTileExists) {
				continue
			}
			return n, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		n++
	}
	m.log.Info("navmesh tiles loaded", zap.String("dir", dir), zap.Int("tiles", n))
	return n, nil
}
