package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/shop-e2e/internal/errs"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestFSStore_SaveWritesNamedFile(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	store := NewFSStore(fs, "test-results/screenshots")
	store.now = fixedClock(1700000000123)

	path, err := store.Save(context.Background(), "signup-form", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("test-results/screenshots", "signup-form-1700000000123.png"), path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestFSStore_SameMillisecondGetsUniqueFiles(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	store := NewFSStore(fs, "shots")
	store.now = fixedClock(42)

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		path, err := store.Save(context.Background(), "home", []byte{byte(i)})
		require.NoError(t, err)
		require.False(t, seen[path], "duplicate path %s", path)
		seen[path] = true
	}
	assert.Contains(t, seen, filepath.Join("shots", "home-46.png"))

	entries, err := afero.ReadDir(fs, "shots")
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestFSStore_ConcurrentSavesAreUnique(t *testing.T) {
	t.Parallel()
	store := NewFSStore(afero.NewMemMapFs(), "shots")
	store.now = fixedClock(1)

	var mu sync.Mutex
	paths := map[string]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			path, err := store.Save(context.Background(), "race", []byte("x"))
			assert.NoError(t, err)
			mu.Lock()
			paths[path] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, paths, 20)
}

func TestFSStore_OSFilesystem(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "nested", "screens")
	store := NewFSStore(nil, dir)

	path, err := store.Save(context.Background(), "os", []byte("data"))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`os-\d+\.png$`), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestFSStore_WriteFailureIsIOError(t *testing.T) {
	t.Parallel()
	store := NewFSStore(afero.NewReadOnlyFs(afero.NewMemMapFs()), "shots")

	_, err := store.Save(context.Background(), "blocked", []byte("x"))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.IO), "expected IO code, got %v", err)
}

func TestFSStore_CanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFSStore(afero.NewMemMapFs(), "shots").Save(ctx, "late", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errs.Is(err, errs.IO))
}

func testSanitizeName_SingleSafeComponent(t *rapid.T) {
	name := rapid.String().Draw(t, "name")
	got := SanitizeName(name)
	if got == "" {
		t.Fatal("SanitizeName returned empty string")
	}
	if !regexp.MustCompile(`^[a-zA-Z0-9._-]+$`).MatchString(got) {
		t.Fatalf("unsafe characters in %q", got)
	}
	if got == "." || got == ".." || filepath.Base(got) != got {
		t.Fatalf("SanitizeName(%q) = %q is not a single path component", name, got)
	}
}

func TestSanitizeName_SingleSafeComponent(t *testing.T) {
	rapid.Check(t, testSanitizeName_SingleSafeComponent)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "home-page-1700000000000.png", FileName("home-page", 1700000000000))
	assert.Equal(t, "unknown-7.png", FileName("  ", 7))
	assert.Equal(t, "a_b-7.png", FileName("a/b", 7))
}
