package main

import (
	"os"
	"strings"

	"go.uber.org/zap"

	"navmotion.ai/internal/logging"
	"navmotion.ai/internal/persistence/r2s3"
)

// openArchiveMirror returns nil when NM_ARCHIVE_ENDPOINT is unset. Closed
// telemetry files are then kept locally only.
func openArchiveMirror(dataDir, worldID string, log *zap.Logger) (*r2s3.Mirror, error) {
	endpoint := strings.TrimSpace(os.Getenv("NM_ARCHIVE_ENDPOINT"))
	if endpoint == "" {
		return nil, nil
	}
	client, err := r2s3.New(r2s3.Config{
		Endpoint:        endpoint,
		Bucket:          os.Getenv("NM_ARCHIVE_BUCKET"),
		Region:          os.Getenv("NM_ARCHIVE_REGION"),
		AccessKeyID:     os.Getenv("NM_ARCHIVE_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("NM_ARCHIVE_SECRET_ACCESS_KEY"),
	})
	if err != nil {
		return nil, err
	}
	log = logging.Named(log, "archive")
	prefix := strings.TrimSpace(os.Getenv("NM_ARCHIVE_PREFIX"))
	if prefix == "" {
		prefix = "navmotion"
	}
	log.Info("archive mirror enabled", zap.String("endpoint", client.Endpoint()), zap.String("prefix", prefix), zap.String("world", worldID))
	return r2s3.NewMirror(client, r2s3.MirrorOptions{DataDir: dataDir, Prefix: prefix, Workers: 2}, log), nil
}
