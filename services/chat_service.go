package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"medical-rag-platform/internal/ai"
	"medical-rag-platform/internal/logger"
	"medical-rag-platform/internal/memory"
	"medical-rag-platform/internal/telemetry"
	"medical-rag-platform/models"
)

// MaxMessageLength bounds a single user question, in runes.
const MaxMessageLength = 2000

// RetrieverProvider hands out the retriever used for a query.
type RetrieverProvider func(ctx context.Context) (Retriever, error)

// ChatService answers medical questions from the indexed corpus while
// keeping short per-conversation memory.
type ChatService struct {
	llm       ai.LLM
	retriever RetrieverProvider
	memory    memory.Store
	metrics   *Metrics
	telemetry *telemetry.Metrics
}

func NewChatService(llm ai.LLM, retriever RetrieverProvider, mem memory.Store, metrics *Metrics, tel *telemetry.Metrics) *ChatService {
	return &ChatService{
		llm:       llm,
		retriever: retriever,
		memory:    mem,
		metrics:   metrics,
		telemetry: tel,
	}
}

func validateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: message is empty", ErrValidation)
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters", ErrValidation, MaxMessageLength)
	}
	return nil
}

func (s *ChatService) startSpan(ctx context.Context, name, conversationID string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("chat").Start(ctx, name)
	span.SetAttributes(attribute.String("chat.conversation_id", conversationID))
	return ctx, span
}

func (s *ChatService) record(start time.Time, status string) {
	latency := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordQuery(latency)
	}
	s.telemetry.RecordChat(float64(latency)/float64(time.Millisecond), status)
}

// Ask runs the full question pipeline and returns the final answer. Safety
// rejections come back as *SafetyRejection, provider failures as
// *UpstreamError.
func (s *ChatService) Ask(ctx context.Context, conversationID, message string) (*models.ChatResponse, error) {
	if err := validateMessage(message); err != nil {
		return nil, err
	}
	if err := CheckSafety(message); err != nil {
		return nil, err
	}

	ctx, span := s.startSpan(ctx, "chat.ask", conversationID)
	defer span.End()
	start := time.Now()

	resp, err := s.ask(ctx, conversationID, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Chat failed", "conversation_id", conversationID, "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("chat.status", resp.Status), attribute.Int("chat.sources", len(resp.Sources)))
	s.record(start, resp.Status)
	return resp, nil
}

func (s *ChatService) ask(ctx context.Context, conversationID, message string) (*models.ChatResponse, error) {
	medical, err := s.classify(ctx, message)
	if err != nil {
		return nil, err
	}
	if !medical {
		if err := s.memory.Append(ctx, conversationID, models.RoleAssistant, OutOfScopeMessage); err != nil {
			return nil, fmt.Errorf("save memory: %w", err)
		}
		return &models.ChatResponse{
			Answer:         OutOfScopeMessage,
			Sources:        []models.Source{},
			ConversationID: conversationID,
			Status:         models.StatusOutOfScope,
		}, nil
	}

	messages, chunks, err := s.prepare(ctx, conversationID, message)
	if err != nil {
		return nil, err
	}

	answer, err := s.llm.Complete(ctx, messages, chatTemperature)
	if err != nil {
		return nil, upstream("generate", err)
	}

	answer, sources, err := s.finish(ctx, message, answer, chunks)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, conversationID, message, answer); err != nil {
		return nil, err
	}

	return &models.ChatResponse{
		Answer:         answer,
		Sources:        sources,
		ConversationID: conversationID,
		Status:         models.StatusAnswered,
	}, nil
}

// classify asks the model whether the question is medical.
func (s *ChatService) classify(ctx context.Context, message string) (bool, error) {
	reply, err := s.llm.Complete(ctx, []ai.Message{ai.User(classifierPrompt(message))}, 0)
	if err != nil {
		return false, upstream("classify", err)
	}
	return isMedical(reply), nil
}

// prepare retrieves context and builds the generation prompt. Without any
// retrieved chunks the prompt falls back to general knowledge.
func (s *ChatService) prepare(ctx context.Context, conversationID, message string) ([]ai.Message, []models.Chunk, error) {
	history, err := s.memory.History(ctx, conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("load memory: %w", err)
	}

	retriever, err := s.retriever(ctx)
	if err != nil {
		return nil, nil, upstream("retriever", err)
	}
	chunks, err := retriever.Retrieve(ctx, message)
	if err != nil {
		return nil, nil, upstream("retrieve", err)
	}

	if len(chunks) == 0 {
		return []ai.Message{ai.System(noContextInstruction), ai.User(message)}, nil, nil
	}

	excerpts := make([]string, len(chunks))
	for i, ch := range chunks {
		excerpts[i] = ch.Content
	}
	return []ai.Message{
		ai.System(fmt.Sprintf(ragInstruction, strings.Join(excerpts, "\n\n"))),
		ai.User(memory.RenderContext(history) + message),
	}, chunks, nil
}

// finish applies cleanup, one repair attempt for bad answers, source
// attribution and Markdown normalization to a generated answer.
func (s *ChatService) finish(ctx context.Context, message, answer string, chunks []models.Chunk) (string, []models.Source, error) {
	answer = CleanAnswerSpacing(answer)

	if IsBadAnswer(answer) {
		logger.Debug("Regenerating low-quality answer", "length", len(answer))
		repaired, err := s.llm.Complete(ctx, []ai.Message{ai.System(repairInstruction), ai.User(message)}, chatTemperature)
		if err != nil {
			return "", nil, upstream("regenerate", err)
		}
		answer = CleanAnswerSpacing(repaired)
	}

	sources := BuildSources(chunks)
	if len(sources) == 0 {
		answer += GeneralKnowledgeNote
	}

	if !LooksLikeMarkdown(answer) {
		formatted, err := s.llm.Complete(ctx, []ai.Message{ai.User(reformatPrompt(answer))}, chatTemperature)
		if err != nil {
			return "", nil, upstream("reformat", err)
		}
		answer = strings.TrimSpace(formatted)
	}
	return answer, sources, nil
}

func (s *ChatService) commit(ctx context.Context, conversationID, message, answer string) error {
	if err := s.memory.Append(ctx, conversationID, models.RoleUser, message); err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	if err := s.memory.Append(ctx, conversationID, models.RoleAssistant, answer); err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	return nil
}

// ClearConversation forgets every turn of a conversation.
func (s *ChatService) ClearConversation(ctx context.Context, conversationID string) error {
	return s.memory.Clear(ctx, conversationID)
}

// History returns the remembered turns of a conversation.
func (s *ChatService) History(ctx context.Context, conversationID string) ([]models.Turn, error) {
	return s.memory.History(ctx, conversationID)
}
