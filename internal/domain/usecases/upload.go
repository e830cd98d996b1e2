// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
// They hold the per-surface interaction state; renderers only read snapshots.
package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/0xcro3dile/docqa-go/internal/domain/apierr"
	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

var (
	// ErrNotPDF rejects a selection whose MIME type is not application/pdf.
	ErrNotPDF = apierr.NewValidation("Please select a PDF file")

	// ErrNoFile rejects an upload with nothing selected.
	ErrNoFile = apierr.NewValidation("Please select a file first")
)

// UploadFlow is the upload interaction state machine.
// States: Idle -> FileSelected -> Uploading -> {Succeeded, Failed}; a new
// selection from Succeeded or Failed goes back to FileSelected.
type UploadFlow struct {
	backend   ports.Backend
	inspector ports.FileInspector
	logger    *slog.Logger

	mu     sync.Mutex
	status entities.UploadStatus
	file   *entities.FileSelection
	result *entities.UploadResult
	notice *entities.Notice
}

// NewUploadFlow creates an Idle flow.
func NewUploadFlow(backend ports.Backend, inspector ports.FileInspector, logger *slog.Logger) *UploadFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadFlow{
		backend:   backend,
		inspector: inspector,
		logger:    logger,
	}
}

// Snapshot returns the current attempt for rendering.
func (f *UploadFlow) Snapshot() entities.UploadAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	att := entities.UploadAttempt{Status: f.status}
	if f.file != nil {
		file := *f.file
		att.File = &file
	}
	if f.result != nil {
		res := *f.result
		att.Result = &res
	}
	if f.notice != nil {
		n := *f.notice
		att.Notice = &n
	}
	return att
}

// Select records a file choice. A non-PDF leaves the current selection
// and state alone and returns ErrNotPDF.
func (f *UploadFlow) Select(sel entities.FileSelection) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status == entities.UploadUploading {
		return ErrBusy
	}
	if !sel.IsPDF() {
		f.notice = &entities.Notice{Kind: entities.NoticeError, Text: ErrNotPDF.Message}
		return ErrNotPDF
	}
	f.file = &sel
	f.status = entities.UploadFileSelected
	f.result = nil
	f.notice = nil
	return nil
}

// SelectPath inspects a local file and selects it. It returns ErrBusy
// without touching the file while an upload is pending.
func (f *UploadFlow) SelectPath(ctx context.Context, path string) error {
	if f.busy() {
		return ErrBusy
	}
	sel, err := f.inspector.Inspect(ctx, path)
	if err != nil {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.status == entities.UploadUploading {
			return ErrBusy
		}
		f.notice = &entities.Notice{Kind: entities.NoticeError, Text: apierr.Message(err)}
		return err
	}
	return f.Select(*sel)
}

func (f *UploadFlow) busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status == entities.UploadUploading
}

// Start begins uploading the selected file. It returns ErrNoFile when
// nothing is selected and ErrBusy while an upload is pending. The channel
// yields exactly one Outcome once the flow has left Uploading.
func (f *UploadFlow) Start(ctx context.Context) (<-chan entities.Outcome[*entities.UploadResult], error) {
	f.mu.Lock()
	if f.status == entities.UploadUploading {
		f.mu.Unlock()
		return nil, ErrBusy
	}
	if f.file == nil {
		f.notice = &entities.Notice{Kind: entities.NoticeError, Text: ErrNoFile.Message}
		f.mu.Unlock()
		return nil, ErrNoFile
	}
	file := *f.file
	f.status = entities.UploadUploading
	f.notice = nil
	f.mu.Unlock()

	body, err := f.inspector.Open(&file)
	if err != nil {
		f.mu.Lock()
		f.fail(err)
		f.mu.Unlock()
		return nil, err
	}

	f.logger.Info("uploading document", "filename", file.Name, "size", file.Size)

	done := make(chan entities.Outcome[*entities.UploadResult], 1)
	go func() {
		defer close(done)
		defer body.Close()
		res, err := f.backend.UploadDocument(ctx, body, file.Name, file.MIMEType)
		done <- f.settle(entities.Outcome[*entities.UploadResult]{Value: res, Err: err})
	}()
	return done, nil
}

// Upload starts the upload and waits for it to settle.
func (f *UploadFlow) Upload(ctx context.Context) (*entities.UploadResult, error) {
	done, err := f.Start(ctx)
	if err != nil {
		return nil, err
	}
	out := <-done
	return out.Value, out.Err
}

// settle is the Uploading -> {Succeeded, Failed} transition.
func (f *UploadFlow) settle(out entities.Outcome[*entities.UploadResult]) entities.Outcome[*entities.UploadResult] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if out.Err != nil || out.Value == nil {
		if out.Err == nil {
			out.Err = apierr.NewApplication("empty response")
		}
		f.fail(out.Err)
		return out
	}

	res := *out.Value
	f.status = entities.UploadSucceeded
	f.result = &res
	f.file = nil
	f.notice = &entities.Notice{
		Kind: entities.NoticeSuccess,
		Text: fmt.Sprintf("Successfully uploaded %s! %d chunks created.", res.Filename, res.Chunks),
	}
	f.logger.Info("document uploaded", "filename", res.Filename, "chunks", res.Chunks)
	return out
}

// fail moves to Failed keeping the selection. Caller holds mu.
func (f *UploadFlow) fail(err error) {
	f.status = entities.UploadFailed
	f.result = nil
	f.notice = &entities.Notice{
		Kind: entities.NoticeError,
		Text: "Upload failed: " + apierr.Message(err),
	}
	f.logger.Warn("upload failed", "kind", apierr.KindOf(err).String(), "error", err)
}
