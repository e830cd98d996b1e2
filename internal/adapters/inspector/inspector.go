// Package inspector provides the local file inspection adapter.
// Clean Architecture: Adapter implementing ports.FileInspector.
package inspector

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// sniffLen is how many bytes content detection looks at.
const sniffLen = 512

// PDFInspector implements ports.FileInspector for files on local disk.
type PDFInspector struct{}

// NewPDFInspector creates a new inspector.
func NewPDFInspector() *PDFInspector {
	return &PDFInspector{}
}

// Inspect stats the file, detects its MIME type and counts PDF pages.
func (i *PDFInspector) Inspect(ctx context.Context, path string) (*entities.FileSelection, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	sel := &entities.FileSelection{
		Name:     filepath.Base(path),
		Path:     path,
		Size:     info.Size(),
		MIMEType: DetectMIME(head[:n], path),
	}
	if sel.IsPDF() {
		sel.Pages = countPages(path)
	}
	return sel, nil
}

// Open returns the file contents for upload.
func (i *PDFInspector) Open(sel *entities.FileSelection) (io.ReadCloser, error) {
	return os.Open(sel.Path)
}

// DetectMIME sniffs content first; when the bytes say nothing more specific
// than octet-stream the extension decides.
func DetectMIME(head []byte, name string) string {
	sniffed := baseType(http.DetectContentType(head))
	if sniffed != "application/octet-stream" {
		return sniffed
	}
	if byExt := baseType(mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))); byExt != "" {
		return byExt
	}
	return sniffed
}

// baseType drops parameters such as "; charset=utf-8".
func baseType(mt string) string {
	if mt == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(mt)
	if err != nil {
		return mt
	}
	return parsed
}

// countPages returns the page count, or 0 if the PDF cannot be parsed.
func countPages(path string) (pages int) {
	defer func() {
		// the parser panics on some malformed xref tables
		if recover() != nil {
			pages = 0
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	return r.NumPage()
}
