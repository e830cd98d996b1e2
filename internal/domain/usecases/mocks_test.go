package usecases

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// mockBackend implements ports.Backend for testing
type mockBackend struct {
	mu       sync.Mutex
	uploadFn func(ctx context.Context, filename string, body []byte) (*entities.UploadResult, error)
	chatFn   func(ctx context.Context, question string) (*entities.ChatReply, error)
	listFn   func(ctx context.Context) ([]string, error)
	healthy  bool

	uploads   int
	chats     int
	questions []string
}

func (m *mockBackend) UploadDocument(ctx context.Context, file io.Reader, filename, mimeType string) (*entities.UploadResult, error) {
	body, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.uploads++
	m.mu.Unlock()
	if m.uploadFn != nil {
		return m.uploadFn(ctx, filename, body)
	}
	return &entities.UploadResult{Filename: filename, Chunks: 1, Status: "stored"}, nil
}

func (m *mockBackend) SendChatMessage(ctx context.Context, question string) (*entities.ChatReply, error) {
	m.mu.Lock()
	m.chats++
	m.questions = append(m.questions, question)
	m.mu.Unlock()
	if m.chatFn != nil {
		return m.chatFn(ctx, question)
	}
	return &entities.ChatReply{Question: question, Answer: "mocked answer", Sources: []string{}}, nil
}

func (m *mockBackend) ListUploadedDocuments(ctx context.Context) ([]string, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []string{}, nil
}

func (m *mockBackend) CheckHealth(ctx context.Context) bool {
	return m.healthy
}

func (m *mockBackend) counts() (uploads, chats int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads, m.chats
}

// mockInspector implements ports.FileInspector for testing
type mockInspector struct {
	openErr error
	onOpen  func()
}

func (m *mockInspector) Inspect(ctx context.Context, path string) (*entities.FileSelection, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	mime := "text/plain"
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		mime = entities.PDFMimeType
	}
	return &entities.FileSelection{
		Name:     filepath.Base(path),
		Path:     path,
		Size:     info.Size(),
		MIMEType: mime,
	}, nil
}

func (m *mockInspector) Open(sel *entities.FileSelection) (io.ReadCloser, error) {
	if m.onOpen != nil {
		m.onOpen()
	}
	if m.openErr != nil {
		return nil, m.openErr
	}
	if sel.Path != "" {
		return os.Open(sel.Path)
	}
	return io.NopCloser(strings.NewReader("%PDF-1.4")), nil
}

// mockWatcher implements ports.FileWatcher for testing
type mockWatcher struct {
	events chan ports.FileEvent
}

func newMockWatcher() *mockWatcher {
	return &mockWatcher{events: make(chan ports.FileEvent, 16)}
}

func (m *mockWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	return m.events, nil
}

func (m *mockWatcher) Stop() error {
	return nil
}

func pdfSelection(name string) entities.FileSelection {
	return entities.FileSelection{Name: name, Size: 2048, MIMEType: entities.PDFMimeType}
}

// mockLedger implements ports.UploadLedger for testing
type mockLedger struct {
	mu       sync.Mutex
	versions map[string]entities.FileVersion
	recorded []string
}

func (m *mockLedger) Uploaded(ctx context.Context, v entities.FileVersion) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.versions[v.Path]
	return ok && prev.Same(v), nil
}

func (m *mockLedger) Record(ctx context.Context, v entities.FileVersion, res *entities.UploadResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions == nil {
		m.versions = map[string]entities.FileVersion{}
	}
	m.versions[v.Path] = v
	m.recorded = append(m.recorded, res.Filename)
	return nil
}
