package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/env"
	"github.com/gdbrns/go-whatsapp-broadcast-rest-api/pkg/log"
)

// UploadsDir holds media and spreadsheet uploads; it is never served.
// ExportsDir is exposed read-only under /exports.
func UploadsDir() string {
	return env.GetEnvStringOrDefault("STORAGE_UPLOADS_DIR", "uploads")
}

func ExportsDir() string {
	return env.GetEnvStringOrDefault("STORAGE_EXPORTS_DIR", filepath.Join("public", "exports"))
}

func EnsureDirs() error {
	for _, dir := range []string{UploadsDir(), ExportsDir()} {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("storage path exists but is not a directory: %s", dir)
			}
			continue
		}
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to check storage directory %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}
	return nil
}

// Sweep removes files older than maxAge from both storage directories.
// Both directories otherwise grow without bound.
func Sweep(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	cutoff := time.Now().Add(-maxAge)
	for _, dir := range []string{UploadsDir(), ExportsDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		removed := 0
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
				removed++
			}
		}
		if removed > 0 {
			log.Op("StorageSweep").WithField("dir", dir).WithField("removed", removed).Info("Removed expired files")
		}
	}
}
