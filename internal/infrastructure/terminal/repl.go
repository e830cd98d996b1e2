// Package terminal renders interaction state on a text console.
// Framework/driver layer: it reads user input and prints snapshots, nothing more.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
)

const helpText = `Commands:
  /docs    list uploaded documents
  /health  check the backend connection
  /history show this conversation so far
  /help    show this help
  /quit    leave the chat
Anything else is sent as a question.`

// REPL is an interactive chat loop over a ChatSession.
type REPL struct {
	chat    *usecases.ChatSession
	library *usecases.DocumentLibrary
	probe   *usecases.ConnectionProbe
	in      io.Reader
	out     io.Writer
}

// NewREPL creates a REPL reading questions from in and writing to out.
func NewREPL(chat *usecases.ChatSession, library *usecases.DocumentLibrary, probe *usecases.ConnectionProbe, in io.Reader, out io.Writer) *REPL {
	return &REPL{chat: chat, library: library, probe: probe, in: in, out: out}
}

// Run loops until /quit, end of input, or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	RenderConnection(r.out, r.probe.Refresh(ctx))
	RenderDocuments(r.out, r.library.Refresh(ctx))
	fmt.Fprintln(r.out, "Type /help for commands.")

	scanner := bufio.NewScanner(r.in)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(r.out, helpText)
			continue
		case "/docs":
			RenderDocuments(r.out, r.library.Refresh(ctx))
			continue
		case "/health":
			RenderConnection(r.out, r.probe.Refresh(ctx))
			continue
		case "/history":
			RenderTranscript(r.out, r.chat.Transcript())
			continue
		}

		msg, err := r.chat.Send(ctx, line)
		if errors.Is(err, usecases.ErrEmptyQuestion) || errors.Is(err, usecases.ErrBusy) {
			continue
		}
		RenderMessage(r.out, msg)
	}
}

// RenderMessage prints an assistant message and its sources.
func RenderMessage(w io.Writer, msg entities.ChatMessage) {
	fmt.Fprintln(w, msg.Content)
	if len(msg.Sources) > 0 {
		fmt.Fprintf(w, "Sources: %s\n", strings.Join(msg.Sources, ", "))
	}
}

// RenderTranscript prints every message with a role prefix.
func RenderTranscript(w io.Writer, transcript []entities.ChatMessage) {
	for _, msg := range transcript {
		prefix := "you"
		if msg.Role == entities.RoleAssistant {
			prefix = "assistant"
		}
		fmt.Fprintf(w, "[%s] ", prefix)
		RenderMessage(w, msg)
	}
}

// RenderConnection prints the backend banner.
func RenderConnection(w io.Writer, state entities.ConnectionState) {
	switch state {
	case entities.ConnectionUp:
		fmt.Fprintln(w, "Backend connected.")
	case entities.ConnectionDown:
		fmt.Fprintln(w, "Cannot reach the backend server. Please try again later.")
	}
}

// RenderDocuments prints the uploaded document list, if any.
func RenderDocuments(w io.Writer, names []string) {
	if len(names) == 0 {
		fmt.Fprintln(w, "No documents uploaded yet.")
		return
	}
	fmt.Fprintf(w, "Documents: %s\n", strings.Join(names, ", "))
}

// RenderSelection prints the chosen file.
func RenderSelection(w io.Writer, sel *entities.FileSelection) {
	if sel == nil {
		return
	}
	if sel.Pages > 0 {
		fmt.Fprintf(w, "Selected: %s (%s, %d pages)\n", sel.Name, sel.SizeLabel(), sel.Pages)
		return
	}
	fmt.Fprintf(w, "Selected: %s (%s)\n", sel.Name, sel.SizeLabel())
}

// RenderUpload prints the notice of an upload attempt.
func RenderUpload(w io.Writer, att entities.UploadAttempt) {
	if att.Notice != nil {
		fmt.Fprintln(w, att.Notice.Text)
	}
}
