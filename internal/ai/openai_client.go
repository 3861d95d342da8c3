package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"medical-rag-platform/internal/telemetry"
)

type OpenAIClient struct {
	client *openai.Client
	model  string
	guard  *guard
}

func NewOpenAIClient(apiKey, model string, rpm int, metrics *telemetry.Metrics) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
		guard:  newGuard("OpenAIAPI", rpm, metrics),
	}
}

func (oc *OpenAIClient) request(messages []Message, temperature float32) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	// a zero temperature is dropped by omitempty and becomes the API default
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	return openai.ChatCompletionRequest{
		Model:       oc.model,
		Messages:    msgs,
		Temperature: temperature,
	}
}

func (oc *OpenAIClient) Complete(ctx context.Context, messages []Message, temperature float32) (string, error) {
	ctx, span := otel.Tracer("openai-client").Start(ctx, "openai.complete")
	defer span.End()
	span.SetAttributes(attribute.String("openai.model", oc.model))

	text, err := oc.guard.do(ctx, func() (string, error) {
		resp, err := oc.client.CreateChatCompletion(ctx, oc.request(messages, temperature))
		if err != nil {
			return "", err
		}
		span.SetAttributes(attribute.Int("openai.total_tokens", resp.Usage.TotalTokens))
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return "", ErrEmptyResponse
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("openai complete: %w", err)
	}
	return text, nil
}

func (oc *OpenAIClient) Stream(ctx context.Context, messages []Message, temperature float32, onToken func(string) error) (string, error) {
	ctx, span := otel.Tracer("openai-client").Start(ctx, "openai.stream")
	defer span.End()
	span.SetAttributes(attribute.String("openai.model", oc.model))

	text, err := oc.guard.do(ctx, func() (string, error) {
		req := oc.request(messages, temperature)
		req.Stream = true
		stream, err := oc.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return "", err
		}
		defer stream.Close()

		var full strings.Builder
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return full.String(), nil
			}
			if err != nil {
				return full.String(), err
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			token := resp.Choices[0].Delta.Content
			full.WriteString(token)
			if err := onToken(token); err != nil {
				return full.String(), err
			}
		}
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return text, fmt.Errorf("openai stream: %w", err)
	}
	return text, nil
}
