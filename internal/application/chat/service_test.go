package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faq-rag-api/internal/application/rag"
	"faq-rag-api/internal/domain/entity"
	"faq-rag-api/internal/domain/repository"
	"faq-rag-api/internal/infrastructure/messaging"
	apperrors "faq-rag-api/pkg/errors"
)

type stubSessionRepo struct {
	sessions    map[string]*entity.ChatSession
	titles      map[string]string
	titleErr    error
	updated     []*entity.ChatSession
	closeBefore time.Time
	closeResult int64
}

func newStubSessionRepo(ids ...string) *stubSessionRepo {
	r := &stubSessionRepo{sessions: map[string]*entity.ChatSession{}, titles: map[string]string{}}
	for _, id := range ids {
		s := entity.NewChatSession("")
		s.ID = id
		r.sessions[id] = s
	}
	return r
}

func (r *stubSessionRepo) Create(_ context.Context, s *entity.ChatSession) error {
	s.ID = "sess-" + strconv.Itoa(len(r.sessions)+1)
	r.sessions[s.ID] = s
	return nil
}

func (r *stubSessionRepo) GetByID(_ context.Context, id string) (*entity.ChatSession, error) {
	return r.sessions[id], nil
}

func (r *stubSessionRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.ChatSession, error) {
	return r.GetByID(ctx, id)
}

func (r *stubSessionRepo) Update(_ context.Context, s *entity.ChatSession) error {
	r.updated = append(r.updated, s)
	return nil
}

func (r *stubSessionRepo) List(_ context.Context, _ bool, p repository.Pagination) (*repository.PagedResult[*entity.ChatSession], error) {
	items := make([]*entity.ChatSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		items = append(items, s)
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

func (r *stubSessionRepo) SetTitleIfEmpty(_ context.Context, id, title string) error {
	if r.titleErr != nil {
		return r.titleErr
	}
	if _, ok := r.titles[id]; !ok {
		r.titles[id] = title
	}
	return nil
}

func (r *stubSessionRepo) CloseIdle(_ context.Context, before time.Time) (int64, error) {
	r.closeBefore = before
	return r.closeResult, nil
}

type stubMessageRepo struct {
	created     []*entity.Message
	createErr   error
	recentLimit int
	feedback    map[string]int
}

func newStubMessageRepo() *stubMessageRepo {
	return &stubMessageRepo{feedback: map[string]int{}}
}

func (r *stubMessageRepo) Create(_ context.Context, m *entity.Message) error {
	if r.createErr != nil {
		return r.createErr
	}
	m.ID = "msg-" + strconv.Itoa(len(r.created)+1)
	r.created = append(r.created, m)
	return nil
}

func (r *stubMessageRepo) GetByID(_ context.Context, id string) (*entity.Message, error) {
	for _, m := range r.created {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (r *stubMessageRepo) Recent(_ context.Context, sessionID string, limit int) ([]*entity.Message, error) {
	r.recentLimit = limit
	var out []*entity.Message
	for _, m := range r.created {
		if m.ChatSessionID == sessionID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *stubMessageRepo) ListBySession(_ context.Context, sessionID string, p repository.Pagination) (*repository.PagedResult[*entity.Message], error) {
	out, _ := r.Recent(context.Background(), sessionID, len(r.created))
	return repository.NewPagedResult(out, int64(len(out)), p), nil
}

func (r *stubMessageRepo) UpdateFeedback(_ context.Context, id string, value int) error {
	r.feedback[id] = value
	return nil
}

func (r *stubMessageRepo) SetFlagged(_ context.Context, _ string, _ bool) error {
	return nil
}

type stubAnalyticsRepo struct{}

func (stubAnalyticsRepo) SessionAnalytics(_ context.Context, sessionID string) (*entity.SessionAnalytics, error) {
	return &entity.SessionAnalytics{SessionID: sessionID, TotalMessages: 2}, nil
}

type stubTurns struct {
	inputs []rag.TurnInput
	result *rag.TurnResult
	err    error
}

func (t *stubTurns) HandleTurn(_ context.Context, in rag.TurnInput) (*rag.TurnResult, error) {
	t.inputs = append(t.inputs, in)
	if t.err != nil {
		return nil, t.err
	}
	res := *t.result
	res.SessionID = in.SessionID
	return &res, nil
}

type stubPublisher struct {
	turns     []*messaging.TurnCompletedEvent
	feedbacks []*messaging.FeedbackRecordedEvent
}

func (p *stubPublisher) PublishTurnCompleted(_ context.Context, ev *messaging.TurnCompletedEvent) (string, error) {
	p.turns = append(p.turns, ev)
	return "1-0", nil
}

func (p *stubPublisher) PublishFeedbackRecorded(_ context.Context, ev *messaging.FeedbackRecordedEvent) (string, error) {
	p.feedbacks = append(p.feedbacks, ev)
	return "1-1", nil
}

type fixture struct {
	svc       *Service
	sessions  *stubSessionRepo
	messages  *stubMessageRepo
	turns     *stubTurns
	publisher *stubPublisher
}

func newFixture() *fixture {
	f := &fixture{
		sessions: newStubSessionRepo("s-1", "s-2"),
		messages: newStubMessageRepo(),
		turns: &stubTurns{result: &rag.TurnResult{
			Answer:     "You must verify your identity. [1]",
			AnswerType: rag.AnswerGrounded,
			MessageID:  "msg-rag",
			Metrics: map[string]any{
				"kept_hits":    2,
				"verification": rag.Verification{Confidence: 0.8},
			},
		}},
		publisher: &stubPublisher{},
	}
	classifier := rag.NewIntentClassifier(rag.DefaultIntentConfig(), nil)
	f.svc = NewService(f.sessions, f.messages, stubAnalyticsRepo{}, NewMessageStore(f.messages), classifier, f.turns, f.publisher)
	return f
}

func TestChat_OffTopicGetsCannedReply(t *testing.T) {
	f := newFixture()

	res, err := f.svc.Chat(context.Background(), ChatInput{SessionID: "s-1", Message: "Tell me a cat joke", HistorySize: DefaultHistorySize})
	require.NoError(t, err)

	assert.Equal(t, rag.AnswerFallback, res.AnswerType)
	assert.Equal(t, replyOffTopic, res.Answer)
	assert.Empty(t, res.Sources)
	assert.Empty(t, f.turns.inputs)

	require.Len(t, f.messages.created, 2)
	assert.Equal(t, entity.RoleUser, f.messages.created[0].Role)
	assistant := f.messages.created[1]
	assert.Equal(t, entity.RoleAssistant, assistant.Role)
	assert.Equal(t, res.MessageID, assistant.ID)
	require.NotNil(t, assistant.AnswerType)
	assert.Equal(t, entity.AnswerTypeFallback, *assistant.AnswerType)
	require.NotNil(t, assistant.LatencyMs)
	assert.Zero(t, *assistant.LatencyMs)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(assistant.RetrievalStats, &stats))
	assert.Equal(t, "off_topic", stats["router_intent"])
	assert.InDelta(t, 0.85, stats["intent_confidence"], 1e-9)

	assert.Equal(t, "Tell me a cat joke", f.sessions.titles["s-1"])
	require.Len(t, f.publisher.turns, 1)
	assert.Equal(t, "off_topic", f.publisher.turns[0].Intent)
	assert.Equal(t, "fallback", f.publisher.turns[0].AnswerType)
}

func TestChat_CannedRepliesPerIntent(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"hello there", replyGreeting},
		{"thanks", replySmalltalk},
		{"what is the weather today?", replyOffTopic},
		{"zz", replyNonsense},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			f := newFixture()
			res, err := f.svc.Chat(context.Background(), ChatInput{SessionID: "s-1", Message: tc.message})
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Answer)
			assert.Equal(t, rag.AnswerFallback, res.AnswerType)
		})
	}
}

func TestChat_FintechQuestionUsesOrchestrator(t *testing.T) {
	f := newFixture()
	text := "How do I verify my account?"

	res, err := f.svc.Chat(context.Background(), ChatInput{SessionID: "s-1", Message: text, HistorySize: DefaultHistorySize})
	require.NoError(t, err)
	assert.Equal(t, rag.AnswerGrounded, res.AnswerType)
	assert.Equal(t, "s-1", res.SessionID)

	require.Len(t, f.turns.inputs, 1)
	in := f.turns.inputs[0]
	assert.Equal(t, text, in.UserText)
	assert.NotEmpty(t, in.Query)
	assert.Equal(t, "account", in.CategoryHint)
	assert.InDelta(t, 0.9, in.IntentConfidence, 1e-9)

	// 检索路径的消息由编排器写入
	assert.Empty(t, f.messages.created)
	assert.Equal(t, DefaultHistorySize, f.messages.recentLimit)

	require.Len(t, f.publisher.turns, 1)
	ev := f.publisher.turns[0]
	assert.Equal(t, "fintech_question", ev.Intent)
	assert.Equal(t, 2, ev.KeptHits)
	require.NotNil(t, ev.VerificationConfidence)
	assert.InDelta(t, 0.8, *ev.VerificationConfidence, 1e-9)
}

func TestChat_Validation(t *testing.T) {
	cases := []struct {
		name string
		in   ChatInput
		want *apperrors.AppError
	}{
		{"empty message", ChatInput{SessionID: "s-1", Message: "   "}, apperrors.ErrInvalidParam},
		{"negative history", ChatInput{SessionID: "s-1", Message: "hi", HistorySize: -1}, apperrors.ErrInvalidParam},
		{"history too large", ChatInput{SessionID: "s-1", Message: "hi", HistorySize: 51}, apperrors.ErrInvalidParam},
		{"unknown session", ChatInput{SessionID: "missing", Message: "hi"}, apperrors.ErrSessionNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Chat(context.Background(), tc.in)
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, f.messages.created)
			assert.Empty(t, f.publisher.turns)
		})
	}
}

func TestChat_TitleErrorIsIgnored(t *testing.T) {
	f := newFixture()
	f.sessions.titleErr = errors.New("db down")

	res, err := f.svc.Chat(context.Background(), ChatInput{SessionID: "s-1", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, replyGreeting, res.Answer)
}

func TestChat_PersistenceFailureSurfaces(t *testing.T) {
	f := newFixture()
	f.messages.createErr = errors.New("insert failed")

	_, err := f.svc.Chat(context.Background(), ChatInput{SessionID: "s-1", Message: "hi"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.AsAppError(err).Code)
	assert.Empty(t, f.publisher.turns)
}

func TestFeedback(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Chat(context.Background(), ChatInput{SessionID: "s-1", Message: "hi"})
	require.NoError(t, err)
	userMsg, assistantMsg := f.messages.created[0], f.messages.created[1]

	cases := []struct {
		name string
		in   FeedbackInput
		want *apperrors.AppError
	}{
		{"invalid value", FeedbackInput{SessionID: "s-1", MessageID: assistantMsg.ID, Value: 2}, apperrors.ErrInvalidParam},
		{"missing message", FeedbackInput{SessionID: "s-1", MessageID: "nope", Value: 1}, apperrors.ErrMessageNotFound},
		{"other session", FeedbackInput{SessionID: "s-2", MessageID: assistantMsg.ID, Value: 1}, apperrors.ErrSessionForbidden},
		{"user message", FeedbackInput{SessionID: "s-1", MessageID: userMsg.ID, Value: 1}, apperrors.ErrFeedbackNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Feedback(context.Background(), tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, f.messages.feedback)

	msg, err := f.svc.Feedback(context.Background(), FeedbackInput{SessionID: "s-1", MessageID: assistantMsg.ID, Value: -1})
	require.NoError(t, err)
	require.NotNil(t, msg.UserFeedback)
	assert.Equal(t, -1, *msg.UserFeedback)
	assert.Equal(t, -1, f.messages.feedback[assistantMsg.ID])
	require.Len(t, f.publisher.feedbacks, 1)
	assert.Equal(t, "s-1", f.publisher.feedbacks[0].SessionID)
}

func TestHistory(t *testing.T) {
	f := newFixture()
	for _, m := range []string{"hi", "thanks"} {
		_, err := f.svc.Chat(context.Background(), ChatInput{SessionID: "s-1", Message: m})
		require.NoError(t, err)
	}

	msgs, err := f.svc.History(context.Background(), "s-1", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, replyGreeting, msgs[0].Content)
	assert.Equal(t, "thanks", msgs[1].Content)
	assert.Equal(t, replySmalltalk, msgs[2].Content)

	_, err = f.svc.History(context.Background(), "s-1", 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
	_, err = f.svc.History(context.Background(), "s-1", 101)
	assert.ErrorIs(t, err, apperrors.ErrInvalidParam)
	_, err = f.svc.History(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestEndSession(t *testing.T) {
	f := newFixture()

	s, err := f.svc.EndSession(context.Background(), "s-1")
	require.NoError(t, err)
	assert.False(t, s.IsActive)
	require.NotNil(t, s.EndedAt)
	require.Len(t, f.sessions.updated, 1)

	_, err = f.svc.EndSession(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Len(t, f.sessions.updated, 1)
}

func TestSessionSweeper_CloseIdle(t *testing.T) {
	f := newFixture()
	f.sessions.closeResult = 3

	n, err := NewSessionSweeper(f.sessions).CloseIdle(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), f.sessions.closeBefore, 5*time.Second)
}

func TestCreateSessionAndAnalytics(t *testing.T) {
	f := newFixture()

	s, err := f.svc.CreateSession(context.Background(), "  Card limits ")
	require.NoError(t, err)
	require.NotNil(t, s.Title)
	assert.Equal(t, "Card limits", *s.Title)
	assert.True(t, s.IsActive)

	a, err := f.svc.Analytics(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, a.SessionID)

	_, err = f.svc.Analytics(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}
