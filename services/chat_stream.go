package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/codes"

	"medical-rag-platform/internal/logger"
	"medical-rag-platform/models"
)

// tokenBuffer bounds how far generation may run ahead of the consumer.
const tokenBuffer = 64

// Stream answers like Ask but relays tokens as they are generated. The
// channel yields tokens, then one done event, then one sources event. Any
// failure after the channel is returned arrives as a single error event and
// the channel closes without done. Cancelling ctx stops generation.
func (s *ChatService) Stream(ctx context.Context, conversationID, message string) (<-chan models.StreamEvent, error) {
	if err := validateMessage(message); err != nil {
		return nil, err
	}
	if err := CheckSafety(message); err != nil {
		return nil, err
	}

	out := make(chan models.StreamEvent)
	go s.stream(ctx, conversationID, message, out)
	return out, nil
}

func (s *ChatService) stream(ctx context.Context, conversationID, message string, out chan<- models.StreamEvent) {
	defer close(out)

	ctx, span := s.startSpan(ctx, "chat.stream", conversationID)
	defer span.End()
	start := time.Now()

	send := func(ev models.StreamEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Chat stream failed", "conversation_id", conversationID, "error", err)
		send(models.StreamEvent{Type: models.EventError, Message: streamFailureMessage(err)})
	}

	medical, err := s.classify(ctx, message)
	if err != nil {
		fail(err)
		return
	}
	if !medical {
		if err := s.memory.Append(ctx, conversationID, models.RoleAssistant, OutOfScopeMessage); err != nil {
			fail(err)
			return
		}
		if send(models.StreamEvent{Type: models.EventToken, Token: OutOfScopeMessage}) &&
			send(models.StreamEvent{Type: models.EventDone, Answer: OutOfScopeMessage}) {
			send(models.StreamEvent{Type: models.EventSources, Sources: []models.Source{}})
		}
		s.record(start, models.StatusOutOfScope)
		return
	}

	messages, chunks, err := s.prepare(ctx, conversationID, message)
	if err != nil {
		fail(err)
		return
	}

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tokens := make(chan string, tokenBuffer)
	var full string
	var genErr error
	go func() {
		defer close(tokens)
		full, genErr = s.llm.Stream(genCtx, messages, chatTemperature, func(tok string) error {
			select {
			case tokens <- tok:
				return nil
			case <-genCtx.Done():
				return genCtx.Err()
			}
		})
	}()

	for tok := range tokens {
		if !send(models.StreamEvent{Type: models.EventToken, Token: tok}) {
			cancel()
			for range tokens {
			}
			logger.Debug("Chat stream abandoned by client", "conversation_id", conversationID)
			return
		}
	}
	// tokens is closed, so full and genErr are settled
	if genErr != nil {
		fail(upstream("generate", genErr))
		return
	}

	answer, sources, err := s.finish(ctx, message, full, chunks)
	if err != nil {
		fail(err)
		return
	}
	if err := s.commit(ctx, conversationID, message, answer); err != nil {
		fail(err)
		return
	}

	if send(models.StreamEvent{Type: models.EventDone, Answer: answer}) {
		send(models.StreamEvent{Type: models.EventSources, Sources: sources})
	}
	s.record(start, models.StatusAnswered)
}

// streamFailureMessage is the client-facing text of an error event. Provider
// detail stays in the log.
func streamFailureMessage(err error) string {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return "generation failed: " + ue.Op
	}
	return "internal error"
}
