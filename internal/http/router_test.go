package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/neurobridge-srs/internal/domain"
	domainagg "github.com/yungbote/neurobridge-srs/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
	httpH "github.com/yungbote/neurobridge-srs/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-srs/internal/http/middleware"
	"github.com/yungbote/neurobridge-srs/internal/observability"
	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
	"github.com/yungbote/neurobridge-srs/internal/services/scheduler"
)

type fakeScheduler struct {
	mu sync.Mutex

	dueQuery  scheduler.DueCardsQuery
	dueCards  []*types.Card
	review    scheduler.ReviewInput
	reviewErr error
	created   []domainagg.NewCard
	createErr error
	optimize  scheduler.OptimizeInput
	days      int
}

func (f *fakeScheduler) CreateCard(ctx context.Context, userID uuid.UUID, in domainagg.NewCard) (*types.Card, error) {
	cards, err := f.CreateCards(ctx, userID, []domainagg.NewCard{in})
	if err != nil {
		return nil, err
	}
	return cards[0], nil
}

func (f *fakeScheduler) CreateCards(ctx context.Context, userID uuid.UUID, items []domainagg.NewCard) ([]*types.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, items...)
	if f.createErr != nil {
		return nil, f.createErr
	}
	out := make([]*types.Card, 0, len(items))
	for _, it := range items {
		out = append(out, &types.Card{ID: uuid.New(), UserID: userID, TopicID: it.TopicID, State: fsrs.StateNew, Difficulty: 5})
	}
	return out, nil
}

func (f *fakeScheduler) GetDueCards(ctx context.Context, q scheduler.DueCardsQuery) ([]*types.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dueQuery = q
	return f.dueCards, nil
}

func (f *fakeScheduler) SubmitReview(ctx context.Context, in scheduler.ReviewInput) (domainagg.SubmitReviewResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.review = in
	if f.reviewErr != nil {
		return domainagg.SubmitReviewResult{}, f.reviewErr
	}
	card := &types.Card{ID: in.CardID, UserID: in.UserID, State: fsrs.StateLearning, Reps: 1}
	log := &types.ReviewLog{ID: uuid.New(), CardID: in.CardID, UserID: in.UserID, Rating: in.Rating}
	return domainagg.SubmitReviewResult{Card: card, Log: log}, nil
}

func (f *fakeScheduler) PredictRetention(ctx context.Context, userID, cardID uuid.UUID) (float64, error) {
	return 0.9, nil
}

func (f *fakeScheduler) PreviewReview(ctx context.Context, userID, cardID uuid.UUID) ([]scheduler.RatingPreview, error) {
	return []scheduler.RatingPreview{{Rating: fsrs.Again}, {Rating: fsrs.Hard}, {Rating: fsrs.Good}, {Rating: fsrs.Easy}}, nil
}

func (f *fakeScheduler) GetUpcomingReviews(ctx context.Context, userID uuid.UUID, daysAhead int) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.days = daysAhead
	return map[string]int{"2026-03-02": 1}, nil
}

func (f *fakeScheduler) OptimizeParameters(ctx context.Context, in scheduler.OptimizeInput) (scheduler.OptimizeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optimize = in
	return scheduler.OptimizeResult{
		Status:      scheduler.OptimizeStatusSkipped,
		Reason:      scheduler.ReasonInsufficientData,
		ReviewCount: 10,
		MinReviews:  100,
	}, nil
}

func (f *fakeScheduler) GetCardStats(ctx context.Context, userID uuid.UUID) (scheduler.CardStats, error) {
	return scheduler.CardStats{TotalCards: 3}, nil
}

func (f *fakeScheduler) GetTopicMastery(ctx context.Context, userID, topicID uuid.UUID) (*types.TopicMastery, error) {
	return nil, domainagg.NotFound("scheduler.get_topic_mastery", "no mastery for topic")
}

func (f *fakeScheduler) PurgeUser(ctx context.Context, userID uuid.UUID) (domainagg.PurgeUserResult, error) {
	return domainagg.PurgeUserResult{Cards: 2, ReviewLogs: 5}, nil
}

func (f *fakeScheduler) EnsureGlobalParameters(ctx context.Context) (bool, error) { return false, nil }

func (f *fakeScheduler) StartInvalidationListener(ctx context.Context) error { return nil }

type testServer struct {
	engine  *gin.Engine
	fake    *fakeScheduler
	metrics *observability.Metrics
	userID  uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	fake := &fakeScheduler{}
	m := observability.NewMetrics()
	engine := NewRouter(RouterConfig{
		Log:                log,
		Metrics:            m,
		IdentityMiddleware: httpMW.NewIdentityMiddleware(log),
		ReviewHandler:      httpH.NewReviewHandler(log, fake),
		HealthHandler:      httpH.NewHealthHandler(nil),
	})
	return &testServer{engine: engine, fake: fake, metrics: m, userID: uuid.New()}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(httpMW.HeaderUserID, s.userID.String())
	for k, v := range headers {
		if v == "" {
			req.Header.Del(k)
			continue
		}
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env, ok := decode(t, rec)["error"].(map[string]any)
	if !ok {
		t.Fatalf("missing error envelope: %s", rec.Body.String())
	}
	code, _ := env["code"].(string)
	return code
}

func TestReviewRoutesRequireIdentity(t *testing.T) {
	s := newTestServer(t)
	cases := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"malformed", "not-a-uuid"},
		{"nil", uuid.Nil.String()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/reviews/due", "", map[string]string{httpMW.HeaderUserID: tc.header})
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status: want=%d got=%d", http.StatusUnauthorized, rec.Code)
			}
		})
	}

	rec := s.do(t, http.MethodGet, "/healthcheck", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthcheck: want=200 got=%d", rec.Code)
	}
}

func TestGetDueCardsQueryAndPaging(t *testing.T) {
	s := newTestServer(t)
	s.fake.dueCards = []*types.Card{{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}}
	topicID := uuid.New()

	rec := s.do(t, http.MethodGet, "/api/reviews/due?limit=2&include_new=false&topic_id="+topicID.String(), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	q := s.fake.dueQuery
	if q.UserID != s.userID || q.Limit != 3 || q.IncludeNew || q.TopicID == nil || *q.TopicID != topicID {
		t.Fatalf("query: got=%+v", q)
	}
	body := decode(t, rec)
	cards, _ := body["cards"].([]any)
	if len(cards) != 2 {
		t.Fatalf("cards: want=2 got=%d", len(cards))
	}
	if hasMore, _ := body["has_more"].(bool); !hasMore {
		t.Fatalf("has_more: want=true got=%v", body["has_more"])
	}

	rec = s.do(t, http.MethodGet, "/api/reviews/due", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("default status: want=200 got=%d", rec.Code)
	}
	if s.fake.dueQuery.Limit != scheduler.DefaultDueLimit+1 || !s.fake.dueQuery.IncludeNew {
		t.Fatalf("default query: got=%+v", s.fake.dueQuery)
	}
	if hasMore, _ := decode(t, rec)["has_more"].(bool); hasMore {
		t.Fatalf("has_more: want=false")
	}

	for _, bad := range []string{"limit=abc", "limit=0", "include_new=maybe", "topic_id=nope"} {
		rec = s.do(t, http.MethodGet, "/api/reviews/due?"+bad, "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: want=400 got=%d", bad, rec.Code)
		}
	}
}

func TestSubmitReviewBinding(t *testing.T) {
	s := newTestServer(t)
	cardID := uuid.New()
	path := "/api/reviews/" + cardID.String()

	rec := s.do(t, http.MethodPost, path, `{"rating":"good","review_duration_seconds":4.5}`, map[string]string{
		httpH.HeaderIdempotencyKey: "retry-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	in := s.fake.review
	if in.CardID != cardID || in.UserID != s.userID || in.Rating != fsrs.Good || in.IdempotencyKey != "retry-1" {
		t.Fatalf("review input: got=%+v", in)
	}
	if in.ReviewDurationSeconds == nil || *in.ReviewDurationSeconds != 4.5 {
		t.Fatalf("duration: got=%v", in.ReviewDurationSeconds)
	}
	body := decode(t, rec)
	if replayed, _ := body["replayed"].(bool); replayed {
		t.Fatalf("replayed: want=false")
	}

	rec = s.do(t, http.MethodPost, path, `{"rating":3,"idempotency_key":"body-key"}`, map[string]string{
		httpH.HeaderIdempotencyKey: "header-key",
	})
	if rec.Code != http.StatusOK || s.fake.review.IdempotencyKey != "body-key" {
		t.Fatalf("body key should win: status=%d key=%q", rec.Code, s.fake.review.IdempotencyKey)
	}

	cases := []struct {
		name string
		path string
		body string
		code string
	}{
		{"out of range", path, `{"rating":7}`, "invalid_rating"},
		{"unknown name", path, `{"rating":"perfect"}`, "invalid_rating"},
		{"missing rating", path, `{}`, "invalid_request"},
		{"negative duration", path, `{"rating":3,"review_duration_seconds":-1}`, "invalid_request"},
		{"bad card id", "/api/reviews/xyz", `{"rating":3}`, "invalid_card_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tc.path, tc.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status: want=400 got=%d body=%s", rec.Code, rec.Body.String())
			}
			if got := errorCode(t, rec); got != tc.code {
				t.Fatalf("code: want=%s got=%s", tc.code, got)
			}
		})
	}
}

func TestSubmitReviewMapsServiceErrors(t *testing.T) {
	s := newTestServer(t)
	path := "/api/reviews/" + uuid.New().String()

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domainagg.NotFound("scheduler.submit_review", "card not found"), http.StatusNotFound, "not_found"},
		{domainagg.NewError(domainagg.CodeConflict, "scheduler.submit_review", "card changed concurrently", nil), http.StatusConflict, "conflict"},
		{domainagg.NewError(domainagg.CodeRetryable, "scheduler.submit_review", "busy", nil), http.StatusServiceUnavailable, "retryable"},
	}
	for _, tc := range cases {
		s.fake.reviewErr = tc.err
		rec := s.do(t, http.MethodPost, path, `{"rating":1}`, nil)
		if rec.Code != tc.status {
			t.Fatalf("%v: status want=%d got=%d", tc.err, tc.status, rec.Code)
		}
		if got := errorCode(t, rec); got != tc.code {
			t.Fatalf("%v: code want=%s got=%s", tc.err, tc.code, got)
		}
	}
}

func TestCreateCardRoutes(t *testing.T) {
	s := newTestServer(t)
	topicID := uuid.New()

	rec := s.do(t, http.MethodPost, "/api/reviews/cards", `{"topic_id":"`+topicID.String()+`"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: want=201 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(s.fake.created) != 1 || s.fake.created[0].TopicID == nil || *s.fake.created[0].TopicID != topicID {
		t.Fatalf("created: got=%+v", s.fake.created)
	}

	due := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rec = s.do(t, http.MethodPost, "/api/reviews/cards/bulk",
		`{"cards":[{"flashcard_text":"a"},{"topic_id":"`+topicID.String()+`","initial_due_at":"`+due.Format(time.RFC3339)+`"}]}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("bulk: want=201 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if n, _ := decode(t, rec)["count"].(float64); n != 2 {
		t.Fatalf("bulk count: want=2 got=%v", n)
	}
	last := s.fake.created[len(s.fake.created)-1]
	if last.InitialDueAt == nil || !last.InitialDueAt.Equal(due) {
		t.Fatalf("initial due: got=%v", last.InitialDueAt)
	}

	s.fake.createErr = domainagg.Validation("scheduler.create_cards", "item 0: a chunk, topic or flashcard text is required")
	rec = s.do(t, http.MethodPost, "/api/reviews/cards", `{}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("validation: want=400 got=%d", rec.Code)
	}
	if got := errorCode(t, rec); got != "validation" {
		t.Fatalf("validation code: want=validation got=%s", got)
	}
}

func TestReadRoutes(t *testing.T) {
	s := newTestServer(t)
	cardID := uuid.New()

	rec := s.do(t, http.MethodGet, "/api/reviews/schedule", "", nil)
	if rec.Code != http.StatusOK || s.fake.days != 7 {
		t.Fatalf("schedule default: status=%d days=%d", rec.Code, s.fake.days)
	}
	rec = s.do(t, http.MethodGet, "/api/reviews/schedule?days_ahead=30", "", nil)
	if rec.Code != http.StatusOK || s.fake.days != 30 {
		t.Fatalf("schedule: status=%d days=%d", rec.Code, s.fake.days)
	}

	rec = s.do(t, http.MethodGet, "/api/reviews/retention/"+cardID.String(), "", nil)
	if r, _ := decode(t, rec)["retrievability"].(float64); rec.Code != http.StatusOK || r != 0.9 {
		t.Fatalf("retention: status=%d r=%v", rec.Code, r)
	}

	rec = s.do(t, http.MethodGet, "/api/reviews/preview/"+cardID.String(), "", nil)
	if previews, _ := decode(t, rec)["previews"].([]any); rec.Code != http.StatusOK || len(previews) != 4 {
		t.Fatalf("preview: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/api/reviews/stats", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: want=200 got=%d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/reviews/mastery/"+uuid.New().String(), "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("mastery: want=404 got=%d", rec.Code)
	}

	rec = s.do(t, http.MethodDelete, "/api/reviews/user", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("purge: want=200 got=%d", rec.Code)
	}
}

func TestOptimizeReturnsSkipAsSuccess(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/reviews/optimize", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	res, _ := decode(t, rec)["result"].(map[string]any)
	if res["status"] != scheduler.OptimizeStatusSkipped || res["reason"] != scheduler.ReasonInsufficientData {
		t.Fatalf("result: got=%v", res)
	}
	if s.fake.optimize.UserID != s.userID || s.fake.optimize.TopicID != nil {
		t.Fatalf("input: got=%+v", s.fake.optimize)
	}

	topicID := uuid.New()
	rec = s.do(t, http.MethodPost, "/api/reviews/optimize", `{"topic_id":"`+topicID.String()+`","min_reviews":50}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("scoped status: want=200 got=%d", rec.Code)
	}
	if s.fake.optimize.TopicID == nil || *s.fake.optimize.TopicID != topicID || s.fake.optimize.MinReviews != 50 {
		t.Fatalf("scoped input: got=%+v", s.fake.optimize)
	}
}

func TestMetricsRouteCountsRequests(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/api/reviews/stats", "", nil)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: want=200 got=%d", rec.Code)
	}
	want := `srs_api_requests_total{method="GET",route="/api/reviews/stats",status="200"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Fatalf("metrics body missing %q:\n%s", want, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("request id header missing")
	}
}
