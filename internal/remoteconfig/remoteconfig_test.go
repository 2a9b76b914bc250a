package remoteconfig

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"report_catalog/internal/catalog"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setupTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

const sample = `
repositories:
  - id: hq
    name: Head office
    url: https://hq.example.com
    login: catalog
    password: secret
    timeout: 5s
  - id: branch
    name: Branch
    url: https://branch.example.com
    active: false
  - id: archive
    url: http://archive.example.com:8080
    active: true
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestActiveRepositories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remote-repositories.yaml")
	writeFile(t, path, sample)

	defs, err := NewFile(path, setupTestLogger()).ActiveRepositories(context.Background())
	require.NoError(t, err)

	want := []catalog.RemoteDefinition{
		{ID: "hq", Name: "Head office", URL: "https://hq.example.com", Login: "catalog", Password: "secret", Active: true, Timeout: 5 * time.Second},
		{ID: "archive", URL: "http://archive.example.com:8080", Active: true},
	}
	if diff := cmp.Diff(want, defs); diff != "" {
		t.Errorf("ActiveRepositories() mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingFileHasNoRepositories(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "absent.yaml"), setupTestLogger())

	defs, err := f.ActiveRepositories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remote-repositories.yaml")
	writeFile(t, path, "repositories: [unterminated")

	_, err := NewFile(path, setupTestLogger()).ActiveRepositories(context.Background())
	assert.Error(t, err)
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remote-repositories.yaml")
	f := NewFile(path, setupTestLogger())
	inactive := false

	repos := []Repository{
		{ID: "hq", URL: "https://hq.example.com", Timeout: 3 * time.Second},
		{ID: "old", URL: "https://old.example.com", Active: &inactive},
	}
	require.NoError(t, f.Write(repos))

	got, err := f.Repositories(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff(repos, got); diff != "" {
		t.Errorf("Repositories() mismatch (-want +got):\n%s", diff)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFile("unused.yaml", setupTestLogger()).ActiveRepositories(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWatcherFiresOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "remote-repositories.yaml")
	writeFile(t, path, sample)

	changed := make(chan struct{}, 10)
	w := NewWatcher(path, 20*time.Millisecond, func() { changed <- struct{}{} }, setupTestLogger())
	require.NoError(t, w.Start())
	defer w.Stop()

	// unrelated files in the directory are ignored
	writeFile(t, filepath.Join(dir, "other.yaml"), "x: 1")
	select {
	case <-changed:
		t.Fatal("callback fired for an unrelated file")
	case <-time.After(150 * time.Millisecond):
	}

	writeFile(t, path, sample+"\n")
	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("callback did not fire after the file changed")
	}
}

func TestWatcherDebounces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remote-repositories.yaml")
	writeFile(t, path, sample)

	var calls atomic.Int32
	w := NewWatcher(path, 200*time.Millisecond, func() { calls.Add(1) }, setupTestLogger())
	require.NoError(t, w.Start())

	for i := 0; i < 5; i++ {
		writeFile(t, path, sample)
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	w.Stop()
}

func TestWatcherStartFailsForMissingDirectory(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "absent", "file.yaml"), 0, func() {}, setupTestLogger())
	assert.Error(t, w.Start())
	w.Stop()
}
