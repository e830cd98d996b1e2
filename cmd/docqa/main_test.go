package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/docqa-go/internal/adapters/ledger"
	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"up"}`))
	})
	mux.HandleFunc("/api/pdfs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pdfs":["guide.pdf","faq.pdf"]}`))
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question string `json:"question"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"question": req.Question,
			"answer":   "answer to " + req.Question,
			"sources":  []string{"guide.pdf"},
		})
	})
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		_, fh, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"no file"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"filename": fh.Filename, "chunks": 2, "status": "stored"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, baseURL, stdin string, args ...string) (string, error) {
	t.Helper()
	testChdir(t, t.TempDir())
	t.Setenv("DOCQA_API_BASE_URL", baseURL)
	t.Setenv("DOCQA_LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHealth(t *testing.T) {
	srv := newBackend(t)

	out, err := execute(t, srv.URL+"/api", "", "health")
	require.NoError(t, err)
	assert.Equal(t, "Backend connected.\n", out)
}

func TestHealth_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out, err := execute(t, url+"/api", "", "health")
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, out, "Cannot reach the backend server.")
}

func TestDocs(t *testing.T) {
	srv := newBackend(t)

	out, err := execute(t, srv.URL+"/api", "", "docs")
	require.NoError(t, err)
	assert.Equal(t, "Documents: guide.pdf, faq.pdf\n", out)
}

func TestAsk(t *testing.T) {
	srv := newBackend(t)

	out, err := execute(t, srv.URL+"/api", "", "ask", "what", "is", "this?")
	require.NoError(t, err)
	assert.Equal(t, "answer to what is this?\nSources: guide.pdf\n", out)
}

func TestAsk_Blank(t *testing.T) {
	srv := newBackend(t)

	_, err := execute(t, srv.URL+"/api", "", "ask", "   ")
	assert.ErrorIs(t, err, usecases.ErrEmptyQuestion)
}

func TestUpload(t *testing.T) {
	srv := newBackend(t)
	path := filepath.Join(t.TempDir(), "guide.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n%%EOF\n"), 0o644))

	out, err := execute(t, srv.URL+"/api", "", "upload", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Selected: guide.pdf")
	assert.Contains(t, out, "Successfully uploaded guide.pdf! 2 chunks created.")
}

func TestUpload_NotPDF(t *testing.T) {
	srv := newBackend(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	out, err := execute(t, srv.URL+"/api", "", "upload", path)
	assert.ErrorIs(t, err, errReported)
	assert.Equal(t, "Please select a PDF file\n", out)
}

func TestChat(t *testing.T) {
	srv := newBackend(t)

	out, err := execute(t, srv.URL+"/api", "hello\n/quit\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "Backend connected.")
	assert.Contains(t, out, "answer to hello\nSources: guide.pdf\n")
}

func TestRun_PrintsUnreportedErrors(t *testing.T) {
	testChdir(t, t.TempDir())
	t.Setenv("DOCQA_API_BASE_URL", "not a url")

	var stderr bytes.Buffer
	code := run(context.Background(), []string{"docs"}, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "docqa:")
}

func TestWatch_ReportsLedger(t *testing.T) {
	srv := newBackend(t)
	state := filepath.Join(t.TempDir(), "uploads.db")

	l, err := ledger.NewSQLiteLedger(state)
	require.NoError(t, err)
	v := entities.FileVersion{Path: "/docs/guide.pdf", Size: 10, ModTime: time.Unix(1700000000, 0)}
	require.NoError(t, l.Record(context.Background(), v, &entities.UploadResult{Filename: "guide.pdf", Chunks: 2}))
	require.NoError(t, l.Close())

	testChdir(t, t.TempDir())
	t.Setenv("DOCQA_API_BASE_URL", srv.URL+"/api")
	t.Setenv("DOCQA_LOG_LEVEL", "error")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs([]string{"watch", "--state", state, t.TempDir()})
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	require.NoError(t, root.ExecuteContext(ctx))

	assert.Contains(t, out.String(), "Uploaded 0, failed 0, skipped 0.\n")
	assert.Contains(t, out.String(), "1 files recorded in "+state+".\n")
}
