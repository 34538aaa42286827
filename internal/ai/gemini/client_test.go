package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeModels struct {
	mu      sync.Mutex
	queue   []fakeResponse
	prompts []string
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, content := range contents {
		for _, part := range content.Parts {
			f.prompts = append(f.prompts, part.Text)
		}
	}

	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}

	res := f.queue[0]
	f.queue = f.queue[1:]
	return res.resp, res.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{{Text: text}},
			},
		}},
	}
}

func newTestGenerator(models *fakeModels, maxRetries int) *Generator {
	return &Generator{
		models:     models,
		modelName:  "gemini-test",
		maxRetries: maxRetries,
		logger:     zap.NewNop(),
	}
}

func stubSleep(t *testing.T) {
	t.Helper()
	original := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = original })
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	stubSleep(t)

	models := &fakeModels{queue: []fakeResponse{
		{err: genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}},
		{resp: textResponse("سلام! من آماده همکاری هستم.")},
	}}
	generator := newTestGenerator(models, 2)

	out, err := generator.GenerateContent(context.Background(), "say hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out != "سلام! من آماده همکاری هستم." {
		t.Fatalf("unexpected output: %q", out)
	}

	if len(models.prompts) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.prompts))
	}
}

func TestGeneratorRetriesOnRateLimit(t *testing.T) {
	stubSleep(t)

	models := &fakeModels{queue: []fakeResponse{
		{err: genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}},
		{resp: textResponse("done")},
	}}
	generator := newTestGenerator(models, 1)

	if _, err := generator.GenerateContent(context.Background(), "prompt"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGeneratorDoesNotRetryOnClientError(t *testing.T) {
	stubSleep(t)

	models := &fakeModels{queue: []fakeResponse{
		{err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}},
		{resp: textResponse("should never be returned")},
	}}
	generator := newTestGenerator(models, 3)

	if _, err := generator.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected error")
	}

	if len(models.prompts) != 1 {
		t.Fatalf("expected a single call, got %d", len(models.prompts))
	}
}

func TestGeneratorGivesUpAfterRetries(t *testing.T) {
	stubSleep(t)

	tempErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	models := &fakeModels{queue: []fakeResponse{{err: tempErr}, {err: tempErr}}}
	generator := newTestGenerator(models, 1)

	_, err := generator.GenerateContent(context.Background(), "prompt")
	if err == nil {
		t.Fatalf("expected error")
	}

	if !strings.Contains(err.Error(), "2 attempts") {
		t.Fatalf("expected attempt count in error, got: %v", err)
	}
}

func TestGeneratorRejectsEmptyPromptAndResponse(t *testing.T) {
	generator := newTestGenerator(&fakeModels{}, 0)

	if _, err := generator.GenerateContent(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for empty prompt")
	}

	generator = newTestGenerator(&fakeModels{queue: []fakeResponse{{resp: textResponse("  ")}}}, 0)
	if _, err := generator.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected error for empty response")
	}
}

func TestGeneratorJoinsMultipleParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{{Text: "first "}, {Text: " second"}},
			},
		}},
	}
	models := &fakeModels{queue: []fakeResponse{{resp: resp}}}
	generator := newTestGenerator(models, 0)

	out, err := generator.GenerateContent(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out != "first\nsecond" {
		t.Fatalf("unexpected joined output: %q", out)
	}
}
