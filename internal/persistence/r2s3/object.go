package r2s3

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Object is one upload: where it goes and how it is tagged.
type Object struct {
	Key         string
	ContentType string
	// Meta is sent as x-amz-meta-<name> headers.
	Meta map[string]string
}

// Telemetry streams roll hourly as <stream>-YYYY-MM-DD-HH.jsonl.zst.
var hourlyName = regexp.MustCompile(`^([a-z]+)-(\d{4}-\d{2}-\d{2}-\d{2})\.`)

// Describe normalizes key and derives content type and metadata from it.
// Keys under worlds/<id>/ carry the world id; hourly stream files also carry
// the stream name and the hour they cover.
func Describe(key string) (Object, error) {
	key = strings.Trim(strings.ReplaceAll(strings.TrimSpace(key), "\\", "/"), "/ ")
	if key == "" {
		return Object{}, errors.New("empty object key")
	}
	obj := Object{Key: key, ContentType: contentType(key), Meta: map[string]string{}}

	parts := strings.Split(key, "/")
	for i := 0; i+1 < len(parts)-1; i++ {
		if parts[i] == "worlds" {
			obj.Meta["world"] = url.PathEscape(parts[i+1])
			break
		}
	}
	base := parts[len(parts)-1]
	if m := hourlyName.FindStringSubmatch(base); m != nil {
		if at, err := time.Parse("2006-01-02-15", m[2]); err == nil {
			obj.Meta["stream"] = m[1]
			obj.Meta["hour"] = at.UTC().Format(time.RFC3339)
		}
	}
	return obj, nil
}

func contentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".zst"):
		return "application/zstd"
	case strings.HasSuffix(key, ".jsonl"):
		return "application/x-ndjson"
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	case strings.HasSuffix(key, ".db"):
		return "application/vnd.sqlite3"
	}
	return "application/octet-stream"
}

// ObjectKey maps a file under dataDir to its key below prefix. Files outside
// dataDir have no key.
func ObjectKey(dataDir, prefix, localPath string) (string, error) {
	if localPath == "" {
		return "", errors.New("empty local path")
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	absBase, err := filepath.Abs(dataDir)
	if err != nil {
		return "", err
	}
	absLocal, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absBase, absLocal)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %s is outside data dir %s", absLocal, absBase)
	}
	prefix = strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/")
	if prefix == "" {
		return rel, nil
	}
	return path.Join(prefix, rel), nil
}
