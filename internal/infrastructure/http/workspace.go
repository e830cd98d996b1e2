package http

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
)

// Workspace is the state one browser sees: its own upload flow, chat
// transcript, connection banner and document list.
type Workspace struct {
	ID      string
	Upload  *usecases.UploadFlow
	Chat    *usecases.ChatSession
	Probe   *usecases.ConnectionProbe
	Library *usecases.DocumentLibrary

	root string
	mu   sync.Mutex
	dir  string
}

func newWorkspace(backend ports.Backend, inspector ports.FileInspector, logger *slog.Logger, root string) *Workspace {
	id := uuid.NewString()
	logger = logger.With("workspace", id)
	return &Workspace{
		ID:      id,
		Upload:  usecases.NewUploadFlow(backend, inspector, logger),
		Chat:    usecases.NewChatSession(backend, logger),
		Probe:   usecases.NewConnectionProbe(backend),
		Library: usecases.NewDocumentLibrary(backend, logger),
		root:    root,
	}
}

// stage writes a posted file under the workspace directory and returns its
// path. Each file gets its own subdirectory so the browser's file name is kept.
func (w *Workspace) stage(fh *multipart.FileHeader) (string, error) {
	dir, err := w.ensureDir()
	if err != nil {
		return "", err
	}
	sub, err := os.MkdirTemp(dir, "upload-")
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}

	name := filepath.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	path := filepath.Join(sub, name)

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return path, nil
}

// discard removes a staged file that was never selected.
func (w *Workspace) discard(path string) {
	_ = os.RemoveAll(filepath.Dir(path))
}

// Dir returns the staging directory, or "" before the first upload.
func (w *Workspace) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

func (w *Workspace) ensureDir() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dir != "" {
		return w.dir, nil
	}
	dir, err := os.MkdirTemp(w.root, "docqa-ws-")
	if err != nil {
		return "", fmt.Errorf("workspace dir: %w", err)
	}
	w.dir = dir
	return dir, nil
}

func (w *Workspace) cleanup() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dir != "" {
		_ = os.RemoveAll(w.dir)
		w.dir = ""
	}
}
