package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/askbase/askbase/internal/ai"
	"github.com/askbase/askbase/internal/model"
	appErr "github.com/askbase/askbase/internal/pkg/errors"
	"github.com/askbase/askbase/internal/vectorstore"
)

type fakeAI struct {
	embedErr    error
	embedCalls  [][]string
	answer      string
	answerErr   error
	answerCalls []string
	title       string
	titleErr    error
	titleCalls  int
}

func (f *fakeAI) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	f.embedCalls = append(f.embedCalls, append([]string(nil), texts...))
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, 0, len(texts))
	for range texts {
		out = append(out, []float32{1, 0, 0})
	}
	return out, nil
}

func (f *fakeAI) Answer(ctx context.Context, contextBlock, question string) (string, error) {
	f.answerCalls = append(f.answerCalls, contextBlock)
	if f.answerErr != nil {
		return "", f.answerErr
	}
	return f.answer, nil
}

func (f *fakeAI) Title(ctx context.Context, question string) (string, error) {
	f.titleCalls++
	if f.titleErr != nil {
		return "", f.titleErr
	}
	if f.title == "" {
		return "Test Conversation", nil
	}
	return f.title, nil
}

// scriptedStore returns canned query results keyed by topK so tests can
// drive the narrow and wide retrieval paths independently.
type scriptedStore struct {
	byTopK     map[int][]vectorstore.Result
	queryTopKs []int
	upserts    [][]vectorstore.Record
	upsertErr  error
	events     *[]string
}

func (s *scriptedStore) Init(ctx context.Context) error { return nil }

func (s *scriptedStore) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if s.events != nil {
		*s.events = append(*s.events, "upsert")
	}
	s.upserts = append(s.upserts, records)
	return s.upsertErr
}

func (s *scriptedStore) Query(ctx context.Context, vector []float32, topK int, filter vectorstore.Filter) ([]vectorstore.Result, error) {
	s.queryTopKs = append(s.queryTopKs, topK)
	return s.byTopK[topK], nil
}

func (s *scriptedStore) Delete(ctx context.Context, filter vectorstore.Filter) error { return nil }

func (s *scriptedStore) Ping(ctx context.Context) error { return nil }

type fakeDocStore struct {
	docs   []*model.Document
	err    error
	events *[]string
}

func (f *fakeDocStore) Create(ctx context.Context, doc *model.Document) error {
	if f.events != nil {
		*f.events = append(*f.events, "doc")
	}
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, doc)
	return nil
}

type fakeConvStore struct {
	convs     map[string]*model.Conversation
	createErr error
	created   int
}

func newFakeConvStore() *fakeConvStore {
	return &fakeConvStore{convs: map[string]*model.Conversation{}}
}

func (f *fakeConvStore) Create(ctx context.Context, conv *model.Conversation) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created++
	f.convs[conv.ID] = conv
	return nil
}

func (f *fakeConvStore) Get(ctx context.Context, userID, id string) (*model.Conversation, error) {
	conv, ok := f.convs[id]
	if !ok || conv.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return conv, nil
}

func (f *fakeConvStore) Touch(ctx context.Context, userID, id string, mtime int64) error {
	conv, ok := f.convs[id]
	if !ok || conv.UserID != userID {
		return appErr.ErrNotFound
	}
	conv.Mtime = mtime
	return nil
}

type fakeMsgStore struct {
	msgs []*model.Message
	err  error
}

func (f *fakeMsgStore) Create(ctx context.Context, msg *model.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func newTestService(store vectorstore.Store, backend AIBackend, docs DocumentStore, convs ConversationStore, msgs MessageStore) *RagService {
	svc := NewRagService(store, backend, docs, convs, msgs, RagConfig{ChunkSize: 300, Overlap: 30})
	base := time.Unix(1700000000, 0)
	svc.now = func() time.Time { return base }
	return svc
}

func result(id, source, text string) vectorstore.Result {
	return vectorstore.Result{
		ID:    id,
		Score: 0.9,
		Metadata: vectorstore.Metadata{
			UserID:     "u1",
			Source:     source,
			DocumentID: "d1",
			Text:       text,
		},
	}
}

func TestIngestEmptyInput(t *testing.T) {
	docs := &fakeDocStore{}
	svc := newTestService(&scriptedStore{}, &fakeAI{}, docs, newFakeConvStore(), &fakeMsgStore{})
	_, err := svc.Ingest(context.Background(), "u1", "   \n\t", "notes.txt", "txt")
	require.ErrorIs(t, err, appErr.ErrEmptyInput)
	require.Empty(t, docs.docs)
}

func TestIngestWritesDocumentBeforeVectors(t *testing.T) {
	var events []string
	store := &scriptedStore{events: &events}
	docs := &fakeDocStore{events: &events}
	svc := newTestService(store, &fakeAI{}, docs, newFakeConvStore(), &fakeMsgStore{})

	res, err := svc.Ingest(context.Background(), "u1", "some policy text", "policy.txt", "txt")
	require.NoError(t, err)
	require.Equal(t, []string{"doc", "upsert"}, events)
	require.Equal(t, 1, res.ChunkCount)
	require.Len(t, docs.docs, 1)
	require.Equal(t, res.DocumentID, docs.docs[0].ID)

	require.Len(t, store.upserts, 1)
	rec := store.upserts[0][0]
	require.Equal(t, res.DocumentID+"-0", rec.ID)
	require.Equal(t, "u1", rec.Metadata.UserID)
	require.Equal(t, "policy.txt", rec.Metadata.Source)
	require.Equal(t, res.DocumentID, rec.Metadata.DocumentID)
	require.Equal(t, "some policy text", rec.Metadata.Text)
}

func TestIngestEmbedFailureSkipsUpsert(t *testing.T) {
	store := &scriptedStore{}
	backend := &fakeAI{embedErr: ai.ErrUnavailable}
	svc := newTestService(store, backend, &fakeDocStore{}, newFakeConvStore(), &fakeMsgStore{})

	_, err := svc.Ingest(context.Background(), "u1", "some policy text", "policy.txt", "txt")
	require.ErrorIs(t, err, ai.ErrUnavailable)
	require.Empty(t, store.upserts)
}

func TestIngestPartialUpsertSurfaced(t *testing.T) {
	store := &scriptedStore{
		upsertErr: &vectorstore.PartialUpsertError{Written: 100, FailedBatches: []int{1}, Err: errors.New("boom")},
	}
	svc := newTestService(store, &fakeAI{}, &fakeDocStore{}, newFakeConvStore(), &fakeMsgStore{})

	_, err := svc.Ingest(context.Background(), "u1", "some policy text", "policy.txt", "txt")
	var partial *vectorstore.PartialUpsertError
	require.ErrorAs(t, err, &partial)
	require.Equal(t, 100, partial.Written)
}

func TestAnswerEmptyQuestion(t *testing.T) {
	svc := newTestService(&scriptedStore{}, &fakeAI{}, &fakeDocStore{}, newFakeConvStore(), &fakeMsgStore{})
	_, err := svc.Answer(context.Background(), "u1", "  ", "")
	require.ErrorIs(t, err, appErr.ErrEmptyInput)
}

func TestAnswerNoContextReturnsSentinelWithoutSynthesizer(t *testing.T) {
	store := &scriptedStore{byTopK: map[int][]vectorstore.Result{}}
	backend := &fakeAI{answer: "should never be used"}
	msgs := &fakeMsgStore{}
	svc := newTestService(store, backend, &fakeDocStore{}, newFakeConvStore(), msgs)

	res, err := svc.Answer(context.Background(), "u1", "What is the smoking policy?", "someone-elses-conversation")
	require.NoError(t, err)
	require.Equal(t, ai.UnknownAnswer, res.Answer)
	require.Empty(t, res.Sources)
	require.Empty(t, res.ConversationID)
	require.Empty(t, backend.answerCalls)
	require.Equal(t, []int{6, 12}, store.queryTopKs)
	require.Empty(t, msgs.msgs)
}

func TestAnswerWideFallback(t *testing.T) {
	store := &scriptedStore{byTopK: map[int][]vectorstore.Result{
		12: {result("c1", "policy.txt", "Smoking is allowed only outdoors.")},
	}}
	backend := &fakeAI{answer: "Only outdoors."}
	svc := newTestService(store, backend, &fakeDocStore{}, newFakeConvStore(), &fakeMsgStore{})

	res, err := svc.Answer(context.Background(), "u1", "Where can I smoke?", "")
	require.NoError(t, err)
	require.Equal(t, []int{6, 12}, store.queryTopKs)
	require.Equal(t, "Only outdoors.", res.Answer)
	require.Equal(t, []string{"policy.txt"}, res.Sources)
	require.Len(t, backend.answerCalls, 1)
	require.Contains(t, backend.answerCalls[0], "Smoking is allowed only outdoors.")
}

func TestAnswerNarrowHitSkipsFallback(t *testing.T) {
	store := &scriptedStore{byTopK: map[int][]vectorstore.Result{
		6: {
			result("c1", "policy.txt", "First passage."),
			result("c2", "policy.txt", "Second passage."),
			result("c3", "handbook.md", "Third passage."),
		},
	}}
	backend := &fakeAI{answer: "ok"}
	svc := newTestService(store, backend, &fakeDocStore{}, newFakeConvStore(), &fakeMsgStore{})

	res, err := svc.Answer(context.Background(), "u1", "q", "")
	require.NoError(t, err)
	require.Equal(t, []int{6}, store.queryTopKs)
	require.Equal(t, []string{"policy.txt", "handbook.md"}, res.Sources)
	require.Equal(t, "First passage.\n\nSecond passage.\n\nThird passage.", backend.answerCalls[0])
}

func TestAnswerCreatesConversationWithTitle(t *testing.T) {
	store := &scriptedStore{byTopK: map[int][]vectorstore.Result{
		6: {result("c1", "policy.txt", "text")},
	}}
	backend := &fakeAI{answer: "an answer", title: "Smoking Policy"}
	convs := newFakeConvStore()
	msgs := &fakeMsgStore{}
	svc := newTestService(store, backend, &fakeDocStore{}, convs, msgs)

	res, err := svc.Answer(context.Background(), "u1", "What is the smoking policy?", "")
	require.NoError(t, err)
	require.NotEmpty(t, res.ConversationID)
	require.Equal(t, 1, convs.created)
	require.Equal(t, "Smoking Policy", convs.convs[res.ConversationID].Title)

	require.Len(t, msgs.msgs, 2)
	require.Equal(t, model.MessageRoleUser, msgs.msgs[0].Role)
	require.Equal(t, "What is the smoking policy?", msgs.msgs[0].Content)
	require.Equal(t, model.MessageRoleAssistant, msgs.msgs[1].Role)
	require.Equal(t, "an answer", msgs.msgs[1].Content)
	require.Less(t, msgs.msgs[0].Ctime, msgs.msgs[1].Ctime)
}

func TestAnswerReusesOwnedConversation(t *testing.T) {
	store := &scriptedStore{byTopK: map[int][]vectorstore.Result{
		6: {result("c1", "policy.txt", "text")},
	}}
	backend := &fakeAI{answer: "an answer"}
	convs := newFakeConvStore()
	convs.convs["conv1"] = &model.Conversation{ID: "conv1", UserID: "u1", Title: "t"}
	msgs := &fakeMsgStore{}
	svc := newTestService(store, backend, &fakeDocStore{}, convs, msgs)

	res, err := svc.Answer(context.Background(), "u1", "q", "conv1")
	require.NoError(t, err)
	require.Equal(t, "conv1", res.ConversationID)
	require.Zero(t, convs.created)
	require.Zero(t, backend.titleCalls)
	require.Equal(t, "conv1", msgs.msgs[0].ConversationID)
}

func TestAnswerForeignConversationGetsFresh(t *testing.T) {
	store := &scriptedStore{byTopK: map[int][]vectorstore.Result{
		6: {result("c1", "policy.txt", "text")},
	}}
	backend := &fakeAI{answer: "an answer"}
	convs := newFakeConvStore()
	convs.convs["conv1"] = &model.Conversation{ID: "conv1", UserID: "other", Title: "t"}
	svc := newTestService(store, backend, &fakeDocStore{}, convs, &fakeMsgStore{})

	res, err := svc.Answer(context.Background(), "u1", "q", "conv1")
	require.NoError(t, err)
	require.NotEqual(t, "conv1", res.ConversationID)
	require.Equal(t, 1, convs.created)
}

func TestAnswerPersistenceFailureSwallowed(t *testing.T) {
	store := &scriptedStore{byTopK: map[int][]vectorstore.Result{
		6: {result("c1", "policy.txt", "text")},
	}}
	backend := &fakeAI{answer: "an answer"}
	convs := newFakeConvStore()
	convs.createErr = errors.New("db down")
	svc := newTestService(store, backend, &fakeDocStore{}, convs, &fakeMsgStore{})

	res, err := svc.Answer(context.Background(), "u1", "q", "")
	require.NoError(t, err)
	require.Equal(t, "an answer", res.Answer)
	require.Empty(t, res.ConversationID)
}

func TestAnswerTitleFailureFallsBack(t *testing.T) {
	store := &scriptedStore{byTopK: map[int][]vectorstore.Result{
		6: {result("c1", "policy.txt", "text")},
	}}
	backend := &fakeAI{answer: "an answer", titleErr: errors.New("llm down")}
	convs := newFakeConvStore()
	svc := newTestService(store, backend, &fakeDocStore{}, convs, &fakeMsgStore{})

	res, err := svc.Answer(context.Background(), "u1", "q", "")
	require.NoError(t, err)
	require.Equal(t, fallbackTitle, convs.convs[res.ConversationID].Title)
}

func TestAnswerSynthesizerErrorPropagates(t *testing.T) {
	store := &scriptedStore{byTopK: map[int][]vectorstore.Result{
		6: {result("c1", "policy.txt", "text")},
	}}
	backend := &fakeAI{answerErr: fmt.Errorf("generate: %w", ai.ErrRateLimited)}
	svc := newTestService(store, backend, &fakeDocStore{}, newFakeConvStore(), &fakeMsgStore{})

	_, err := svc.Answer(context.Background(), "u1", "q", "")
	require.ErrorIs(t, err, ai.ErrRateLimited)
}

func TestEndToEndSmokingPolicy(t *testing.T) {
	store := vectorstore.NewMemory(3)
	backend := &fakeAI{answer: "Smoking is allowed only in designated outdoor areas.", title: "Smoking Policy"}
	convs := newFakeConvStore()
	msgs := &fakeMsgStore{}
	svc := newTestService(store, backend, &fakeDocStore{}, convs, msgs)

	text := "The office is smoke-free indoors. Smoking is allowed only in designated outdoor areas."
	ingestRes, err := svc.Ingest(context.Background(), "u1", text, "policy.txt", "txt")
	require.NoError(t, err)
	require.Equal(t, 1, ingestRes.ChunkCount)

	first, err := svc.Answer(context.Background(), "u1", "What is the smoking policy?", "")
	require.NoError(t, err)
	require.Contains(t, strings.ToLower(first.Answer), "outdoor")
	require.Equal(t, []string{"policy.txt"}, first.Sources)
	require.NotEmpty(t, first.ConversationID)

	second, err := svc.Answer(context.Background(), "u1", "And indoors?", first.ConversationID)
	require.NoError(t, err)
	require.Equal(t, first.ConversationID, second.ConversationID)
	require.Equal(t, 1, convs.created)
	require.Len(t, msgs.msgs, 4)

	other, err := svc.Answer(context.Background(), "u2", "What is the smoking policy?", "")
	require.NoError(t, err)
	require.Equal(t, ai.UnknownAnswer, other.Answer)
	require.Empty(t, other.Sources)
}
