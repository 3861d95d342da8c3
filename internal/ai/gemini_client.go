package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"medical-rag-platform/internal/telemetry"
)

type GeminiClient struct {
	client *genai.Client
	model  string
	guard  *guard
}

func NewGeminiClient(ctx context.Context, apiKey, model string, rpm int, metrics *telemetry.Metrics) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiClient{
		client: client,
		model:  model,
		guard:  newGuard("GeminiAPI", rpm, metrics),
	}, nil
}

// session builds a chat session whose history holds every turn but the last,
// which is returned as the prompt to send.
func (gc *GeminiClient) session(messages []Message, temperature float32) (*genai.ChatSession, genai.Part, error) {
	system, turns := splitSystem(messages)
	if len(turns) == 0 {
		return nil, nil, errors.New("no user message to send")
	}

	model := gc.client.GenerativeModel(gc.model)
	model.SetTemperature(temperature)
	model.SetMaxOutputTokens(2048)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := model.StartChat()
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return cs, genai.Text(turns[len(turns)-1].Content), nil
}

func (gc *GeminiClient) startSpan(ctx context.Context, name string, messages []Message, temperature float32) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("gemini-client").Start(ctx, name)
	span.SetAttributes(
		attribute.String("gemini.model", gc.model),
		attribute.Int("gemini.messages", len(messages)),
		attribute.Float64("gemini.temperature", float64(temperature)),
	)
	return ctx, span
}

func (gc *GeminiClient) Complete(ctx context.Context, messages []Message, temperature float32) (string, error) {
	ctx, span := gc.startSpan(ctx, "gemini.complete", messages, temperature)
	defer span.End()

	text, err := gc.guard.do(ctx, func() (string, error) {
		cs, prompt, err := gc.session(messages, temperature)
		if err != nil {
			return "", err
		}
		resp, err := cs.SendMessage(ctx, prompt)
		if err != nil {
			return "", err
		}
		span.SetAttributes(attribute.Int("gemini.actual_tokens", extractTokenUsage(resp)))
		text := extractResponseText(resp)
		if text == "" {
			return "", ErrEmptyResponse
		}
		return text, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("gemini complete: %w", err)
	}
	return text, nil
}

func (gc *GeminiClient) Stream(ctx context.Context, messages []Message, temperature float32, onToken func(string) error) (string, error) {
	ctx, span := gc.startSpan(ctx, "gemini.stream", messages, temperature)
	defer span.End()

	text, err := gc.guard.do(ctx, func() (string, error) {
		cs, prompt, err := gc.session(messages, temperature)
		if err != nil {
			return "", err
		}
		var full strings.Builder
		iter := cs.SendMessageStream(ctx, prompt)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return full.String(), err
			}
			token := extractResponseText(resp)
			if token == "" {
				continue
			}
			full.WriteString(token)
			if err := onToken(token); err != nil {
				return full.String(), err
			}
		}
		return full.String(), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return text, fmt.Errorf("gemini stream: %w", err)
	}
	span.SetAttributes(attribute.Int("gemini.response_chars", len(text)))
	return text, nil
}

// Extract token usage from Gemini response
func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}
	// ~4 characters per token
	return len(extractResponseText(resp)) / 4
}

func extractResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		// only the first candidate is used
		break
	}
	return b.String()
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
