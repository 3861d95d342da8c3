package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"strings"
	"sync"

	"medical-rag-platform/internal/ai"
	"medical-rag-platform/internal/vectorstore"
	"medical-rag-platform/models"
)

type fakeLoader struct {
	mu    sync.Mutex
	docs  []models.Document
	calls int
}

func (f *fakeLoader) LoadFolder(_ context.Context, _ string) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]models.Document(nil), f.docs...), nil
}

type fakeEmbedder struct {
	mu        sync.Mutex
	batches   int
	failOn    int // 1-based EmbedBatch call that fails; 0 never
	failWith  error
	dimension int
}

func vectorFor(text string, dims int) []float32 {
	sum := sha256.Sum256([]byte(text))
	v := make([]float32, dims)
	for i := range v {
		v[i] = float32(sum[i%len(sum)]) + 1
	}
	return v
}

func (f *fakeEmbedder) dims() int {
	if f.dimension == 0 {
		return 8
	}
	return f.dimension
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return vectorFor(text, f.dims()), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	if f.failOn != 0 && f.batches == f.failOn {
		return nil, f.failWith
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorFor(t, f.dims())
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims() }

// fakeIndex wraps an in-process index and records every call.
type fakeIndex struct {
	*vectorstore.Local
	mu           sync.Mutex
	maxBatch     int
	ensureCalls  int
	upserts      [][]string
	deletes      [][]string
	partialOn    int // 1-based Upsert call answered with a PartialBatchError
	partialItems []int
	failUpsertOn int
	failDeleteOn int
}

func newFakeIndex(maxBatch int) *fakeIndex {
	return &fakeIndex{Local: vectorstore.NewLocal(), maxBatch: maxBatch}
}

func (f *fakeIndex) EnsureIndex(ctx context.Context, dimension int, metric string) error {
	f.mu.Lock()
	f.ensureCalls++
	f.mu.Unlock()
	return f.Local.EnsureIndex(ctx, dimension, metric)
}

func (f *fakeIndex) Upsert(ctx context.Context, records []vectorstore.Record) error {
	f.mu.Lock()
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	f.upserts = append(f.upserts, ids)
	call := len(f.upserts)
	f.mu.Unlock()

	if call == f.failUpsertOn {
		return errors.New("index unavailable")
	}
	if call == f.partialOn {
		failed := make(map[int]bool)
		for _, i := range f.partialItems {
			failed[i] = true
		}
		var ok []vectorstore.Record
		for i, r := range records {
			if !failed[i] {
				ok = append(ok, r)
			}
		}
		if err := f.Local.Upsert(ctx, ok); err != nil {
			return err
		}
		return &vectorstore.PartialBatchError{Failed: f.partialItems, Err: errors.New("write error")}
	}
	return f.Local.Upsert(ctx, records)
}

func (f *fakeIndex) Delete(ctx context.Context, ids []string) error {
	f.mu.Lock()
	f.deletes = append(f.deletes, append([]string(nil), ids...))
	call := len(f.deletes)
	f.mu.Unlock()

	if call == f.failDeleteOn {
		return errors.New("index unavailable")
	}
	return f.Local.Delete(ctx, ids)
}

func (f *fakeIndex) MaxBatchSize() int { return f.maxBatch }

type llmCall struct {
	messages    []ai.Message
	temperature float32
	stream      bool
}

func (c llmCall) system() string {
	for _, m := range c.messages {
		if m.Role == ai.RoleSystem {
			return m.Content
		}
	}
	return ""
}

func (c llmCall) last() string { return c.messages[len(c.messages)-1].Content }

func (c llmCall) isClassifier() bool {
	return strings.HasPrefix(c.last(), "Is the following question medical-related")
}

func (c llmCall) isReformat() bool { return strings.Contains(c.last(), "ORIGINAL_REPLY:") }

// fakeLLM answers the classifier with verdict, reformat requests with
// reformatted, and everything else from answers in order.
type fakeLLM struct {
	mu          sync.Mutex
	calls       []llmCall
	verdict     string
	answers     []string
	reformatted string
	failOn      int // 1-based generation call that fails
	failWith    error

	// streaming failure after this many tokens
	streamFailAfter int
	streamErr       error
	streamReturned  chan struct{}
	tokenGate       chan struct{}
}

func (f *fakeLLM) respond(call llmCall) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)

	switch {
	case call.isClassifier():
		return f.verdict, nil
	case call.isReformat():
		return f.reformatted, nil
	}
	gen := 0
	for _, c := range f.calls {
		if !c.isClassifier() && !c.isReformat() {
			gen++
		}
	}
	if gen == f.failOn {
		return "", f.failWith
	}
	if len(f.answers) == 0 {
		return "", errors.New("no scripted answer")
	}
	a := f.answers[0]
	f.answers = f.answers[1:]
	return a, nil
}

func (f *fakeLLM) Complete(_ context.Context, messages []ai.Message, temperature float32) (string, error) {
	return f.respond(llmCall{messages: messages, temperature: temperature})
}

func (f *fakeLLM) Stream(ctx context.Context, messages []ai.Message, temperature float32, onToken func(string) error) (string, error) {
	if f.streamReturned != nil {
		defer close(f.streamReturned)
	}
	text, err := f.respond(llmCall{messages: messages, temperature: temperature, stream: true})
	if err != nil {
		return "", err
	}
	var full strings.Builder
	for i, tok := range strings.SplitAfter(text, " ") {
		if f.streamErr != nil && i == f.streamFailAfter {
			return full.String(), f.streamErr
		}
		if f.tokenGate != nil && i > 0 {
			select {
			case <-f.tokenGate:
			case <-ctx.Done():
				return full.String(), ctx.Err()
			}
		}
		if err := onToken(tok); err != nil {
			return full.String(), err
		}
		full.WriteString(tok)
	}
	return full.String(), nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeLLM) generationCalls() []llmCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []llmCall
	for _, c := range f.calls {
		if !c.isClassifier() && !c.isReformat() {
			out = append(out, c)
		}
	}
	return out
}

type fakeRetriever struct {
	chunks []models.Chunk
	err    error
	calls  int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string) ([]models.Chunk, error) {
	f.calls++
	return f.chunks, f.err
}

func (f *fakeRetriever) provider() RetrieverProvider {
	return func(context.Context) (Retriever, error) { return f, nil }
}
