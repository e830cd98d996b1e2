// Package ports defines interfaces for external dependencies.
// Clean Architecture: These are the boundaries - usecases depend on these abstractions,
// not concrete implementations. Adapters implement these interfaces.
package ports

import (
	"context"
	"io"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// Backend is the remote document QA service.
// Failures of UploadDocument, SendChatMessage and ListUploadedDocuments are
// normalized *apierr.Error values.
type Backend interface {
	// UploadDocument sends a PDF for ingestion. The caller must have checked
	// that mimeType is application/pdf.
	UploadDocument(ctx context.Context, file io.Reader, filename, mimeType string) (*entities.UploadResult, error)

	// SendChatMessage asks a question. A reply carrying an application-level
	// error is still returned with a nil error.
	SendChatMessage(ctx context.Context, question string) (*entities.ChatReply, error)

	// ListUploadedDocuments returns the names of indexed documents.
	ListUploadedDocuments(ctx context.Context) ([]string, error)

	// CheckHealth reports whether the service is reachable and up. Never fails.
	CheckHealth(ctx context.Context) bool
}

// FileInspector turns a local path into a FileSelection.
type FileInspector interface {
	// Inspect stats and sniffs the file at path.
	Inspect(ctx context.Context, path string) (*entities.FileSelection, error)

	// Open returns the file contents for upload.
	Open(sel *entities.FileSelection) (io.ReadCloser, error)
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

// UploadLedger remembers which file versions were already uploaded, so a
// restarted watcher does not send them again.
type UploadLedger interface {
	// Uploaded reports whether this exact version was recorded.
	Uploaded(ctx context.Context, v entities.FileVersion) (bool, error)

	// Record stores a successful upload of v.
	Record(ctx context.Context, v entities.FileVersion, res *entities.UploadResult) error
}
