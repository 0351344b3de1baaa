package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"estate-backend/config"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

func testStorageConfig() config.StorageConfig {
	return config.StorageConfig{
		Bucket:          config.DefaultBucket,
		Folder:          config.DefaultFolder,
		SignedURLExpiry: time.Hour,
		URLCacheTTL:     5 * time.Minute,
		FallbackImage:   config.DefaultFallbackImage,
	}
}

var errStorageDown = errors.New("storage down")

// fakeStorage records calls and resolves paths to deterministic URLs.
type fakeStorage struct {
	mu sync.Mutex

	uploads  []string
	removed  []string
	resolved map[string]int

	uploadErr  error
	removeErr  error
	failPaths  map[string]bool
	panicPaths map[string]bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		resolved:   map[string]int{},
		failPaths:  map[string]bool{},
		panicPaths: map[string]bool{},
	}
}

func (f *fakeStorage) Upload(_ context.Context, data []byte, fileName, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	ext := ".jpg"
	if i := strings.LastIndex(fileName, "."); i >= 0 {
		ext = strings.ToLower(fileName[i:])
	}
	path := fmt.Sprintf("projects/%d-upload%s", len(f.uploads)+1, ext)
	f.uploads = append(f.uploads, path)
	return path, nil
}

func (f *fakeStorage) ResolveURL(_ context.Context, storagePath string, _ time.Duration) (string, error) {
	f.mu.Lock()
	f.resolved[storagePath]++
	n := f.resolved[storagePath]
	fail := f.failPaths[storagePath]
	boom := f.panicPaths[storagePath]
	f.mu.Unlock()

	if boom {
		panic("storage client exploded")
	}
	if fail {
		return "", errStorageDown
	}
	return fmt.Sprintf("https://cdn.test/%s?sig=%d", storagePath, n), nil
}

func (f *fakeStorage) Remove(_ context.Context, storagePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.removed = append(f.removed, storagePath)
	return f.removeErr
}

func (f *fakeStorage) resolveCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved[path]
}

// recordingPages is an in-memory PageCache that remembers invalidations.
type recordingPages struct {
	mu          sync.Mutex
	pages       map[string][]byte
	invalidated []string
}

func newRecordingPages() *recordingPages {
	return &recordingPages{pages: map[string][]byte{}}
}

func (r *recordingPages) Get(_ context.Context, page string) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	body, ok := r.pages[page]
	return body, ok, nil
}

func (r *recordingPages) Set(_ context.Context, page string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[page] = body
	return nil
}

func (r *recordingPages) Invalidate(_ context.Context, pages ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pages {
		delete(r.pages, p)
		r.invalidated = append(r.invalidated, p)
	}
	return nil
}

func newTestResolver(t *testing.T, storage BlobStorage) *ImageURLResolver {
	return NewImageURLResolver(storage, testStorageConfig(), zaptest.NewLogger(t))
}
