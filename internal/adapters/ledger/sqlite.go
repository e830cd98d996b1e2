// Package ledger provides upload ledger adapters.
// Clean Architecture: Adapter implementing ports.UploadLedger.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// SQLiteLedger implements ports.UploadLedger in a single SQLite file.
type SQLiteLedger struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteLedger opens (or creates) the ledger at path.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	if path == "" {
		path = filepath.Join(".docqa", "uploads.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	l := &SQLiteLedger{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return l, nil
}

func (l *SQLiteLedger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS uploads (
		path TEXT PRIMARY KEY,
		size INTEGER NOT NULL,
		mod_time INTEGER NOT NULL,
		filename TEXT NOT NULL,
		chunks INTEGER NOT NULL,
		uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Uploaded reports whether v matches the last recorded upload of its path.
func (l *SQLiteLedger) Uploaded(ctx context.Context, v entities.FileVersion) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var size, modTime int64
	err := l.db.QueryRowContext(ctx,
		`SELECT size, mod_time FROM uploads WHERE path = ?`, v.Path,
	).Scan(&size, &modTime)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying ledger: %w", err)
	}

	prev := entities.FileVersion{Path: v.Path, Size: size, ModTime: time.Unix(0, modTime)}
	return prev.Same(v), nil
}

// Record stores v as the uploaded version of its path.
func (l *SQLiteLedger) Record(ctx context.Context, v entities.FileVersion, res *entities.UploadResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	filename, chunks := filepath.Base(v.Path), 0
	if res != nil {
		filename, chunks = res.Filename, res.Chunks
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO uploads (path, size, mod_time, filename, chunks)
		VALUES (?, ?, ?, ?, ?)
	`, v.Path, v.Size, v.ModTime.UnixNano(), filename, chunks)
	if err != nil {
		return fmt.Errorf("recording upload: %w", err)
	}
	return nil
}

// Count returns the number of recorded paths.
func (l *SQLiteLedger) Count(ctx context.Context) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploads`).Scan(&n)
	return n, err
}

// Close closes the database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
