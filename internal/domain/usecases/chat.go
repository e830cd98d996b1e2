// Package usecases - chat.go drives the chat interaction state machine.
package usecases

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/0xcro3dile/docqa-go/internal/domain/apierr"
	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

var (
	// ErrBusy is returned when a request is already in flight on the surface.
	ErrBusy = errors.New("request already in flight")

	// ErrEmptyQuestion rejects blank chat input before any network call.
	ErrEmptyQuestion = apierr.NewValidation("Please enter a question")
)

// ChatSession owns the transcript for one page lifetime.
// States: Ready -> Sending -> Ready. The transcript is append-only and
// this type is its only writer.
type ChatSession struct {
	id      string
	backend ports.Backend
	logger  *slog.Logger

	mu         sync.Mutex
	status     entities.ChatStatus
	transcript []entities.ChatMessage
}

// NewChatSession creates a Ready session with an empty transcript.
func NewChatSession(backend ports.Backend, logger *slog.Logger) *ChatSession {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &ChatSession{
		id:      id,
		backend: backend,
		logger:  logger.With("session", id),
	}
}

// ID returns the session identifier.
func (s *ChatSession) ID() string {
	return s.id
}

// Status returns the current state.
func (s *ChatSession) Status() entities.ChatStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Transcript returns a copy of the messages so far.
func (s *ChatSession) Transcript() []entities.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.ChatMessage, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Submit appends the user's question and starts the request.
// Blank input returns ErrEmptyQuestion and a pending send returns ErrBusy;
// neither touches the transcript or the network.
// The returned channel yields exactly one Outcome holding the assistant
// message that was appended; Err is non-nil when that message is an error.
func (s *ChatSession) Submit(ctx context.Context, input string) (<-chan entities.Outcome[entities.ChatMessage], error) {
	question := strings.TrimSpace(input)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	s.mu.Lock()
	if s.status == entities.ChatSending {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.transcript = append(s.transcript, entities.ChatMessage{
		Role:    entities.RoleUser,
		Content: question,
	})
	s.status = entities.ChatSending
	s.mu.Unlock()

	s.logger.Info("sending question", "chars", len(question))

	done := make(chan entities.Outcome[entities.ChatMessage], 1)
	go func() {
		defer close(done)
		reply, err := s.backend.SendChatMessage(ctx, question)
		done <- s.settle(entities.Outcome[*entities.ChatReply]{Value: reply, Err: err})
	}()
	return done, nil
}

// Send submits input and waits for the assistant message.
func (s *ChatSession) Send(ctx context.Context, input string) (entities.ChatMessage, error) {
	done, err := s.Submit(ctx, input)
	if err != nil {
		return entities.ChatMessage{}, err
	}
	out := <-done
	return out.Value, out.Err
}

// settle is the Sending -> Ready transition. It always releases Sending and
// always appends exactly one assistant message.
func (s *ChatSession) settle(out entities.Outcome[*entities.ChatReply]) entities.Outcome[entities.ChatMessage] {
	var (
		msg entities.ChatMessage
		err error
	)
	switch {
	case out.Err != nil:
		err = out.Err
		msg = errorMessage(apierr.Message(err))
		s.logger.Warn("chat request failed", "kind", apierr.KindOf(err).String(), "error", err)
	case out.Value == nil:
		err = apierr.NewApplication("empty response")
		msg = errorMessage(err.Error())
	case out.Value.HasError():
		err = apierr.NewApplication(out.Value.Error)
		msg = errorMessage(out.Value.Error)
		s.logger.Info("backend reported an error", "error", out.Value.Error)
	default:
		msg = entities.ChatMessage{
			Role:    entities.RoleAssistant,
			Content: out.Value.Answer,
			Sources: out.Value.Sources,
		}
	}

	s.mu.Lock()
	s.transcript = append(s.transcript, msg)
	s.status = entities.ChatReady
	s.mu.Unlock()

	return entities.Outcome[entities.ChatMessage]{Value: msg, Err: err}
}

func errorMessage(text string) entities.ChatMessage {
	return entities.ChatMessage{
		Role:    entities.RoleAssistant,
		Content: "Error: " + text,
		Failed:  true,
	}
}
