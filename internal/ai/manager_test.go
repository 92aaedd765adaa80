package ai

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	lastPrompt string
	response   string
	err        error
	delay      time.Duration
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

type fakeEmbedder struct {
	dimension int
	calls     [][]string
	taskTypes []string
	short     bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	f.taskTypes = append(f.taskTypes, taskType)
	n := len(texts)
	if f.short {
		n--
	}
	out := make([][]float32, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, make([]float32, f.dimension))
	}
	return out, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-embed"
}

func TestManagerAnswerPromptContainsContextAndQuestion(t *testing.T) {
	gen := &fakeGenerator{response: "Policy forbids smoking indoors."}
	m := NewManager(gen, nil, ManagerConfig{})
	answer, err := m.Answer(context.Background(), "No smoking inside the office.", "Can I smoke at my desk?")
	require.NoError(t, err)
	require.Equal(t, "Policy forbids smoking indoors.", answer)
	require.Contains(t, gen.lastPrompt, "No smoking inside the office.")
	require.Contains(t, gen.lastPrompt, "Can I smoke at my desk?")
	require.Contains(t, gen.lastPrompt, UnknownAnswer)
}

func TestManagerAnswerEmptyResponse(t *testing.T) {
	gen := &fakeGenerator{response: "   \n"}
	m := NewManager(gen, nil, ManagerConfig{})
	_, err := m.Answer(context.Background(), "ctx", "q")
	require.Error(t, err)
}

func TestManagerAnswerPropagatesProviderError(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("call failed: %w", ErrUnavailable)}
	m := NewManager(gen, nil, ManagerConfig{})
	_, err := m.Answer(context.Background(), "ctx", "q")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestManagerTitleStripsQuotes(t *testing.T) {
	gen := &fakeGenerator{response: `"Office Smoking Policy"`}
	m := NewManager(gen, nil, ManagerConfig{})
	title, err := m.Title(context.Background(), "Can I smoke at my desk?")
	require.NoError(t, err)
	require.Equal(t, "Office Smoking Policy", title)
}

func TestManagerTruncationKeepsQuestion(t *testing.T) {
	gen := &fakeGenerator{response: "ok"}
	m := NewManager(gen, nil, ManagerConfig{MaxInputChars: 400})
	question := "What is the smoking policy?"
	_, err := m.Answer(context.Background(), strings.Repeat("x", 4096), question)
	require.NoError(t, err)
	require.LessOrEqual(t, len(gen.lastPrompt), 400)
	require.Contains(t, gen.lastPrompt, question)
	require.Contains(t, gen.lastPrompt, UnknownAnswer)
}

func TestManagerTruncationRuneSafe(t *testing.T) {
	gen := &fakeGenerator{response: "ok"}
	m := NewManager(gen, nil, ManagerConfig{MaxInputChars: 400})
	_, err := m.Answer(context.Background(), strings.Repeat("喫煙は屋外のみ。", 200), "q")
	require.NoError(t, err)
	require.LessOrEqual(t, len(gen.lastPrompt), 400)
	require.True(t, utf8.ValidString(gen.lastPrompt))
}

func TestManagerSmallPromptNotTruncated(t *testing.T) {
	gen := &fakeGenerator{response: "ok"}
	m := NewManager(gen, nil, ManagerConfig{MaxInputChars: 4096})
	_, err := m.Answer(context.Background(), "short context", "q")
	require.NoError(t, err)
	require.Contains(t, gen.lastPrompt, "short context")
}

func TestManagerTimeout(t *testing.T) {
	gen := &fakeGenerator{response: "ok", delay: 300 * time.Millisecond}
	m := NewManager(gen, nil, ManagerConfig{Timeout: 1})
	_, err := m.Answer(context.Background(), "ctx", "q")
	require.NoError(t, err)
}

func TestManagerEmbedCountMismatch(t *testing.T) {
	emb := &fakeEmbedder{dimension: 4, short: true}
	m := NewManager(nil, emb, ManagerConfig{})
	_, err := m.Embed(context.Background(), []string{"a", "b"}, "RETRIEVAL_DOCUMENT")
	require.Error(t, err)
}

func TestManagerEmbedPassthrough(t *testing.T) {
	emb := &fakeEmbedder{dimension: 4}
	m := NewManager(nil, emb, ManagerConfig{})
	vectors, err := m.Embed(context.Background(), []string{"a", "b"}, "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	require.Equal(t, []string{"RETRIEVAL_QUERY"}, emb.taskTypes)
}
