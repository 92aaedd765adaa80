package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/askbase/askbase/internal/ai"
	"github.com/askbase/askbase/internal/model"
	appErr "github.com/askbase/askbase/internal/pkg/errors"
	"github.com/askbase/askbase/internal/splitter"
	"github.com/askbase/askbase/internal/vectorstore"
)

const (
	narrowTopK = 6
	wideTopK   = 12

	taskTypeDocument = "RETRIEVAL_DOCUMENT"
	taskTypeQuery    = "RETRIEVAL_QUERY"

	fallbackTitle = "New conversation"
)

// AIBackend is the slice of the ai manager the pipeline needs; a
// deterministic fake stands in for it in tests.
type AIBackend interface {
	Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error)
	Answer(ctx context.Context, contextBlock, question string) (string, error)
	Title(ctx context.Context, question string) (string, error)
}

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
}

type ConversationStore interface {
	Create(ctx context.Context, conv *model.Conversation) error
	Get(ctx context.Context, userID, id string) (*model.Conversation, error)
	Touch(ctx context.Context, userID, id string, mtime int64) error
}

type MessageStore interface {
	Create(ctx context.Context, msg *model.Message) error
}

type RagConfig struct {
	ChunkSize int
	Overlap   int
}

type RagService struct {
	store vectorstore.Store
	ai    AIBackend
	docs  DocumentStore
	convs ConversationStore
	msgs  MessageStore
	cfg   RagConfig
	now   func() time.Time
}

func NewRagService(store vectorstore.Store, ai AIBackend, docs DocumentStore, convs ConversationStore, msgs MessageStore, cfg RagConfig) *RagService {
	return &RagService{
		store: store,
		ai:    ai,
		docs:  docs,
		convs: convs,
		msgs:  msgs,
		cfg:   cfg,
		now:   time.Now,
	}
}

type IngestResult struct {
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
}

// Ingest chunks text, embeds the chunks in one batch and upserts the
// vectors under the caller's user id. The document record is written
// before the vectors so a failed vector write still leaves a traceable
// record.
func (s *RagService) Ingest(ctx context.Context, userID, text, sourceLabel, fileType string) (*IngestResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, appErr.ErrEmptyInput
	}
	chunks, err := splitter.Split(text, s.cfg.ChunkSize, s.cfg.Overlap)
	if err != nil {
		return nil, err
	}
	doc := &model.Document{
		ID:         newID(),
		UserID:     userID,
		Filename:   sourceLabel,
		FileType:   fileType,
		ChunkCount: len(chunks),
		Ctime:      s.now().Unix(),
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	vectors, err := s.ai.Embed(ctx, chunks, taskTypeDocument)
	if err != nil {
		return nil, err
	}
	records := make([]vectorstore.Record, 0, len(chunks))
	for i, chunk := range chunks {
		records = append(records, vectorstore.Record{
			ID:     fmt.Sprintf("%s-%d", doc.ID, i),
			Values: vectors[i],
			Metadata: vectorstore.Metadata{
				UserID:     userID,
				Source:     sourceLabel,
				DocumentID: doc.ID,
				Text:       chunk,
			},
		})
	}
	if err := s.store.Upsert(ctx, records); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("ingested document",
		zap.String("document_id", doc.ID),
		zap.String("source", sourceLabel),
		zap.Int("chunk_count", len(chunks)))
	return &IngestResult{DocumentID: doc.ID, ChunkCount: len(chunks)}, nil
}

type AnswerResult struct {
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources"`
	ConversationID string   `json:"conversation_id"`
}

// Answer retrieves context for the question with a narrow query first
// and a single wide fallback, then synthesizes a grounded reply. With
// no retrievable context it returns the unknown sentinel without
// calling the synthesizer.
func (s *RagService) Answer(ctx context.Context, userID, question, conversationID string) (*AnswerResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, appErr.ErrEmptyInput
	}
	vectors, err := s.ai.Embed(ctx, []string{question}, taskTypeQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected one question vector, got %d", len(vectors))
	}
	filter := vectorstore.Filter{UserID: userID}
	results, err := s.store.Query(ctx, vectors[0], narrowTopK, filter)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		results, err = s.store.Query(ctx, vectors[0], wideTopK, filter)
		if err != nil {
			return nil, err
		}
	}
	// No turn is persisted on the sentinel path, so no conversation id
	// is handed back either, validated or not.
	if len(results) == 0 {
		return &AnswerResult{Answer: ai.UnknownAnswer, Sources: []string{}, ConversationID: ""}, nil
	}

	contextBlock, sources := buildContext(results)
	answer, err := s.ai.Answer(ctx, contextBlock, question)
	if err != nil {
		return nil, err
	}

	convID := s.persistTurn(ctx, userID, conversationID, question, answer)
	return &AnswerResult{Answer: answer, Sources: sources, ConversationID: convID}, nil
}

// persistTurn appends the question/answer pair to the conversation,
// creating one when the given id is absent or not owned by the user.
// History durability is best effort: failures are logged and the
// already computed answer is returned regardless.
func (s *RagService) persistTurn(ctx context.Context, userID, conversationID, question, answer string) string {
	logger := logutil.GetLogger(ctx)
	now := s.now().Unix()

	convID := ""
	if conversationID != "" {
		if _, err := s.convs.Get(ctx, userID, conversationID); err == nil {
			convID = conversationID
			if err := s.convs.Touch(ctx, userID, convID, now); err != nil {
				logger.Warn("failed to touch conversation", zap.String("conversation_id", convID), zap.Error(err))
			}
		} else if !appErr.IsNotFound(err) {
			logger.Warn("failed to resolve conversation", zap.String("conversation_id", conversationID), zap.Error(err))
		}
	}
	if convID == "" {
		title, err := s.ai.Title(ctx, question)
		if err != nil || strings.TrimSpace(title) == "" {
			if err != nil {
				logger.Warn("failed to generate conversation title", zap.Error(err))
			}
			title = fallbackTitle
		}
		conv := &model.Conversation{
			ID:     newID(),
			UserID: userID,
			Title:  title,
			Ctime:  now,
			Mtime:  now,
		}
		if err := s.convs.Create(ctx, conv); err != nil {
			logger.Warn("failed to create conversation", zap.Error(err))
			return ""
		}
		convID = conv.ID
	}

	turn := []*model.Message{
		{ID: newID(), ConversationID: convID, Role: model.MessageRoleUser, Content: question, Ctime: now},
		{ID: newID(), ConversationID: convID, Role: model.MessageRoleAssistant, Content: answer, Ctime: now + 1},
	}
	for _, msg := range turn {
		if err := s.msgs.Create(ctx, msg); err != nil {
			logger.Warn("failed to persist message",
				zap.String("conversation_id", convID),
				zap.String("role", msg.Role),
				zap.Error(err))
			return convID
		}
	}
	return convID
}

func buildContext(results []vectorstore.Result) (string, []string) {
	texts := make([]string, 0, len(results))
	seen := make(map[string]struct{})
	sources := make([]string, 0, len(results))
	for _, res := range results {
		if res.Metadata.Text != "" {
			texts = append(texts, res.Metadata.Text)
		}
		if res.Metadata.Source == "" {
			continue
		}
		if _, ok := seen[res.Metadata.Source]; ok {
			continue
		}
		seen[res.Metadata.Source] = struct{}{}
		sources = append(sources, res.Metadata.Source)
	}
	return strings.Join(texts, "\n\n"), sources
}
