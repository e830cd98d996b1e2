// Package entities contains core business entities.
// These are the client-side domain objects - transient, request-scoped, no knowledge of HTTP.
package entities

import (
	"fmt"
	"time"
)

// PDFMimeType is the only MIME type the backend accepts for ingestion.
const PDFMimeType = "application/pdf"

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage represents a conversation turn in the transcript.
// Messages are immutable once appended.
type ChatMessage struct {
	Role    Role
	Content string
	Sources []string // Document labels the answer was drawn from (assistant only)
	Failed  bool     // Assistant message carries an error instead of an answer
}

// ChatRequest is the question half of a chat exchange.
type ChatRequest struct {
	Question string
}

// ChatReply is the backend's answer to a ChatRequest.
// A non-empty Error means the backend failed at the application level
// even though the HTTP call succeeded.
type ChatReply struct {
	Question string
	Answer   string
	Sources  []string
	Error    string
}

// HasError reports whether the reply carries an application-level error.
func (r *ChatReply) HasError() bool {
	return r != nil && r.Error != ""
}

// FileSelection describes a local file the user picked for upload.
type FileSelection struct {
	Name     string
	Path     string
	Size     int64
	MIMEType string
	Pages    int // 0 when the page count could not be determined
}

// IsPDF reports whether the declared MIME type is application/pdf.
func (f FileSelection) IsPDF() bool {
	return f.MIMEType == PDFMimeType
}

// SizeLabel formats the size in megabytes with two decimals.
func (f FileSelection) SizeLabel() string {
	return fmt.Sprintf("%.2f MB", float64(f.Size)/1024/1024)
}

// UploadResult is the backend's acknowledgement of an ingested document.
type UploadResult struct {
	Filename string
	Chunks   int
	Status   string
}

// UploadStatus is the lifecycle state of an upload attempt.
type UploadStatus int

const (
	UploadIdle UploadStatus = iota
	UploadFileSelected
	UploadUploading
	UploadSucceeded
	UploadFailed
)

func (s UploadStatus) String() string {
	switch s {
	case UploadIdle:
		return "idle"
	case UploadFileSelected:
		return "file_selected"
	case UploadUploading:
		return "uploading"
	case UploadSucceeded:
		return "succeeded"
	case UploadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// NoticeKind distinguishes success and error notices shown next to a control.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is an inline status message.
type Notice struct {
	Kind NoticeKind
	Text string
}

// UploadAttempt is a snapshot of the upload flow.
type UploadAttempt struct {
	Status UploadStatus
	File   *FileSelection
	Result *UploadResult
	Notice *Notice
}

// ChatStatus is the lifecycle state of a chat session.
type ChatStatus int

const (
	ChatReady ChatStatus = iota
	ChatSending
)

func (s ChatStatus) String() string {
	if s == ChatSending {
		return "sending"
	}
	return "ready"
}

// ConnectionState is the tri-state result of a backend health probe.
type ConnectionState int

const (
	ConnectionUnknown ConnectionState = iota
	ConnectionUp
	ConnectionDown
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionUp:
		return "up"
	case ConnectionDown:
		return "down"
	default:
		return "unknown"
	}
}

// Outcome is the settled result of an asynchronous request task.
// Exactly one of Value or Err is meaningful.
type Outcome[T any] struct {
	Value T
	Err   error
}

// OK reports whether the task succeeded.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// FileVersion identifies one state of a file on disk.
type FileVersion struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Same reports whether both describe the same file contents by size and mtime.
func (v FileVersion) Same(o FileVersion) bool {
	return v.Path == o.Path && v.Size == o.Size && v.ModTime.Equal(o.ModTime)
}
