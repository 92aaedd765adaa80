package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// UnknownAnswer is the sentinel the answer prompt instructs the model to
// emit when the supplied context does not cover the question. Callers
// compare against it verbatim.
const UnknownAnswer = "I don't know based on the provided information."

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
}

// Manager binds generation and embedding capabilities to the fixed task
// prompts of the pipeline. Grounding is enforced at the prompt level; it
// is a soft guarantee, not post-hoc verification.
type Manager struct {
	generator IGenerator
	embedder  IEmbedder
	cfg       ManagerConfig
}

func NewManager(generator IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{
		generator: generator,
		embedder:  embedder,
		cfg:       cfg,
	}
}

func (m *Manager) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if m.embedder == nil {
		return nil, ErrUnavailable
	}
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	vectors, err := m.embedder.Embed(ctx, texts, taskType)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

// Answer grounds the reply in the supplied context block only. When the
// assembled prompt exceeds MaxInputChars, the context block alone is
// trimmed; the instructions and the question always survive.
func (m *Manager) Answer(ctx context.Context, contextBlock, question string) (string, error) {
	if m.generator == nil {
		return "", ErrUnavailable
	}
	prompt := answerPrompt(contextBlock, question)
	if m.cfg.MaxInputChars > 0 && len(prompt) > m.cfg.MaxInputChars {
		keep := len(contextBlock) - (len(prompt) - m.cfg.MaxInputChars)
		if keep < 0 {
			keep = 0
		}
		prompt = answerPrompt(truncateAtRuneBoundary(contextBlock, keep), question)
	}
	return m.generateText(ctx, prompt)
}

func answerPrompt(contextBlock, question string) string {
	return fmt.Sprintf(`You are a helpful assistant.
Answer ONLY using the provided context.
Give a concise answer (2-3 sentences maximum) and do not restate large parts of the context.
If the answer is not present in the context, say:
"%s"

Context:
%s

Question:
%s`, UnknownAnswer, contextBlock, question)
}

func truncateAtRuneBoundary(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Title produces a short label for a conversation from its opening
// question.
func (m *Manager) Title(ctx context.Context, question string) (string, error) {
	if m.generator == nil {
		return "", ErrUnavailable
	}
	prompt := fmt.Sprintf(`Produce a short title (at most six words) for a conversation that starts with the question below.
- Use the same language as the question.
- Output ONLY the title, without quotes.

QUESTION:
%s`, question)
	title, err := m.generateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.Trim(title, `"`), nil
}

func (m *Manager) generateText(ctx context.Context, prompt string) (string, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	resp, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}
