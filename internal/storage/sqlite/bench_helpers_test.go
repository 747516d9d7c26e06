//go:build bench

package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"sync"
	"testing"
	"time"

	"github.com/hourbook/hourbook/internal/storage"
	"github.com/hourbook/hourbook/internal/testutil/fixtures"
)

var (
	profileOnce   sync.Once
	profileFile   *os.File
	benchCacheDir = filepath.Join(os.TempDir(), "hourbook-bench-cache")
)

// startBenchmarkProfiling starts CPU profiling for the entire benchmark run.
// The profile is saved to bench-cpu-<timestamp>.prof in the current directory.
func startBenchmarkProfiling(b *testing.B) {
	b.Helper()
	profileOnce.Do(func() {
		profilePath := fmt.Sprintf("bench-cpu-%s.prof", time.Now().Format("2006-01-02-150405"))
		f, err := os.Create(profilePath) // #nosec G304
		if err != nil {
			b.Logf("Warning: failed to create CPU profile: %v", err)
			return
		}
		profileFile = f

		if err := pprof.StartCPUProfile(f); err != nil {
			b.Logf("Warning: failed to start CPU profiling: %v", err)
			_ = f.Close()
			return
		}
		b.Logf("CPU profiling enabled: %s", profilePath)

		b.Cleanup(func() {
			pprof.StopCPUProfile()
			if profileFile != nil {
				_ = profileFile.Close()
				b.Logf("CPU profile saved: %s", profilePath)
			}
		})
	})
}

// getCachedOrGenerateDB returns a cached database or generates it if missing.
// Generating the large datasets goes through every invoice operation and
// takes a while, so the result is reused across runs.
func getCachedOrGenerateDB(b *testing.B, cacheKey string, generateFn func(context.Context, storage.Storage) error) string {
	b.Helper()

	if err := os.MkdirAll(benchCacheDir, 0o750); err != nil {
		b.Fatalf("Failed to create benchmark cache directory: %v", err)
	}
	dbPath := filepath.Join(benchCacheDir, cacheKey+".db")

	if stat, err := os.Stat(dbPath); err == nil {
		b.Logf("Using cached benchmark database: %s (%.1f MB)", dbPath, float64(stat.Size())/(1024*1024))
		return dbPath
	}

	b.Logf("Generating benchmark database: %s", dbPath)
	store, err := New(dbPath)
	if err != nil {
		b.Fatalf("Failed to create storage: %v", err)
	}
	if err := generateFn(context.Background(), store); err != nil {
		_ = store.Close()
		_ = os.Remove(dbPath)
		b.Fatalf("Failed to generate dataset: %v", err)
	}
	if err := store.CheckpointWAL(context.Background()); err != nil {
		b.Logf("Warning: checkpoint failed: %v", err)
	}
	_ = store.Close()
	return dbPath
}

func setupBenchDB(b *testing.B, cacheKey string, generateFn func(context.Context, storage.Storage) error) (*SQLiteStorage, func()) {
	b.Helper()
	startBenchmarkProfiling(b)

	cachedPath := getCachedOrGenerateDB(b, cacheKey, generateFn)

	// Work on a copy so mutating benchmarks leave the cache intact
	tmpPath := filepath.Join(b.TempDir(), cacheKey+".db")
	if _, err := copyFile(cachedPath, tmpPath); err != nil {
		b.Fatalf("Failed to copy cached database: %v", err)
	}
	store, err := New(tmpPath)
	if err != nil {
		b.Fatalf("Failed to open database: %v", err)
	}
	return store, func() { _ = store.Close() }
}

// setupLargeBenchDB creates or reuses a cached 10K entry database
func setupLargeBenchDB(b *testing.B) (*SQLiteStorage, func()) {
	return setupBenchDB(b, "large", fixtures.LargeSQLite)
}

// setupXLargeBenchDB creates or reuses a cached 20K entry database
func setupXLargeBenchDB(b *testing.B) (*SQLiteStorage, func()) {
	return setupBenchDB(b, "xlarge", fixtures.XLargeSQLite)
}
