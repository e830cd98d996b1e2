package usecases

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

func TestAutoUploader_UploadsSettledPDFs(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "a.pdf")
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o644))

	backend := &mockBackend{}
	watcher := newMockWatcher()
	flow := NewUploadFlow(backend, &mockInspector{}, nil)
	uploader := NewAutoUploader(watcher, flow, 20*time.Millisecond, nil)

	var mu sync.Mutex
	settled := map[string]entities.UploadStatus{}
	uploader.OnSettled = func(path string, att entities.UploadAttempt) {
		mu.Lock()
		settled[path] = att.Status
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- uploader.Run(ctx, dir) }()

	// Create + write on the same file collapse into one upload.
	watcher.events <- ports.FileEvent{Path: pdf, Operation: ports.FileCreated}
	watcher.events <- ports.FileEvent{Path: pdf, Operation: ports.FileModified}
	watcher.events <- ports.FileEvent{Path: txt, Operation: ports.FileCreated}

	require.Eventually(t, func() bool {
		s := uploader.Stats()
		return s.Uploaded == 1 && s.Skipped == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Unchanged content is not sent twice.
	watcher.events <- ports.FileEvent{Path: pdf, Operation: ports.FileModified}
	time.Sleep(100 * time.Millisecond)

	uploads, _ := backend.counts()
	assert.Equal(t, 1, uploads)

	mu.Lock()
	assert.Equal(t, entities.UploadSucceeded, settled[pdf])
	mu.Unlock()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestAutoUploader_DeletedBeforeSettle(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "gone.pdf")

	backend := &mockBackend{}
	watcher := newMockWatcher()
	uploader := NewAutoUploader(watcher, NewUploadFlow(backend, &mockInspector{}, nil), 20*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	watcher.events <- ports.FileEvent{Path: pdf, Operation: ports.FileCreated}
	watcher.events <- ports.FileEvent{Path: pdf, Operation: ports.FileDeleted}
	require.NoError(t, uploader.Run(ctx, dir))

	uploads, _ := backend.counts()
	assert.Zero(t, uploads)
	assert.Equal(t, AutoUploadStats{}, uploader.Stats())
}

func TestAutoUploader_StopsWhenEventsClose(t *testing.T) {
	watcher := newMockWatcher()
	close(watcher.events)
	uploader := NewAutoUploader(watcher, NewUploadFlow(&mockBackend{}, &mockInspector{}, nil), 0, nil)

	assert.NoError(t, uploader.Run(context.Background(), t.TempDir()))
	assert.Equal(t, DefaultQuietPeriod, uploader.quiet)
}

func TestAutoUploader_Ledger(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.pdf")
	fresh := filepath.Join(dir, "fresh.pdf")
	require.NoError(t, os.WriteFile(old, []byte("%PDF-1.4 old"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("%PDF-1.4 fresh"), 0o644))

	info, err := os.Stat(old)
	require.NoError(t, err)
	ledger := &mockLedger{versions: map[string]entities.FileVersion{
		old: {Path: old, Size: info.Size(), ModTime: info.ModTime()},
	}}

	backend := &mockBackend{}
	watcher := newMockWatcher()
	uploader := NewAutoUploader(watcher, NewUploadFlow(backend, &mockInspector{}, nil), 20*time.Millisecond, nil)
	uploader.Ledger = ledger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go uploader.Run(ctx, dir)

	watcher.events <- ports.FileEvent{Path: old, Operation: ports.FileCreated}
	watcher.events <- ports.FileEvent{Path: fresh, Operation: ports.FileCreated}

	require.Eventually(t, func() bool { return uploader.Stats().Uploaded == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	uploads, _ := backend.counts()
	assert.Equal(t, 1, uploads)
	ledger.mu.Lock()
	assert.Equal(t, []string{"fresh.pdf"}, ledger.recorded)
	ledger.mu.Unlock()
}
