package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/yungbote/neurobridge-srs/internal/domain/aggregates"
	"github.com/yungbote/neurobridge-srs/internal/fsrs"
	"github.com/yungbote/neurobridge-srs/internal/http/response"
	"github.com/yungbote/neurobridge-srs/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-srs/internal/platform/logger"
	"github.com/yungbote/neurobridge-srs/internal/services/scheduler"
)

// HeaderIdempotencyKey may carry the submit idempotency token instead of the body.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

type ReviewHandler struct {
	log *logger.Logger
	svc scheduler.Service
}

func NewReviewHandler(log *logger.Logger, svc scheduler.Service) *ReviewHandler {
	return &ReviewHandler{
		log: log.With("handler", "ReviewHandler"),
		svc: svc,
	}
}

type cardRequest struct {
	ChunkID       *uuid.UUID `json:"chunk_id"`
	TopicID       *uuid.UUID `json:"topic_id"`
	FlashcardText *string    `json:"flashcard_text"`
	InitialDueAt  *time.Time `json:"initial_due_at"`
}

func (r cardRequest) toNewCard() domainagg.NewCard {
	return domainagg.NewCard{
		ChunkID:       r.ChunkID,
		TopicID:       r.TopicID,
		FlashcardText: r.FlashcardText,
		InitialDueAt:  r.InitialDueAt,
	}
}

type bulkCardsRequest struct {
	Cards []cardRequest `json:"cards" binding:"required"`
}

type submitReviewRequest struct {
	Rating                *fsrs.Rating `json:"rating" binding:"required"`
	ReviewDurationSeconds *float64     `json:"review_duration_seconds" binding:"omitempty,gte=0"`
	IdempotencyKey        string       `json:"idempotency_key" binding:"omitempty,max=128"`
}

type optimizeRequest struct {
	TopicID    *uuid.UUID `json:"topic_id"`
	MinReviews int        `json:"min_reviews" binding:"omitempty,gte=0"`
}

func requestUser(c *gin.Context) (uuid.UUID, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user identity"))
		return uuid.Nil, false
	}
	return rd.UserID, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, err)
		return uuid.Nil, false
	}
	return id, true
}

// GET /api/reviews/due?limit=&topic_id=&include_new=
func (h *ReviewHandler) GetDueCards(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	limit := scheduler.DefaultDueLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	if limit > scheduler.MaxDueLimit {
		limit = scheduler.MaxDueLimit
	}
	includeNew := true
	if raw := strings.TrimSpace(c.Query("include_new")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_include_new", err)
			return
		}
		includeNew = b
	}
	var topicID *uuid.UUID
	if raw := strings.TrimSpace(c.Query("topic_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_topic_id", err)
			return
		}
		topicID = &id
	}

	// One extra row tells us whether another page exists.
	fetch := limit
	if fetch < scheduler.MaxDueLimit {
		fetch++
	}
	cards, err := h.svc.GetDueCards(c.Request.Context(), scheduler.DueCardsQuery{
		UserID:     userID,
		Limit:      fetch,
		TopicID:    topicID,
		IncludeNew: includeNew,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	hasMore := len(cards) > limit
	if hasMore {
		cards = cards[:limit]
	}
	response.RespondOK(c, gin.H{"cards": cards, "has_more": hasMore})
}

// POST /api/reviews/:card_id
func (h *ReviewHandler) SubmitReview(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	cardID, ok := uuidParam(c, "card_id")
	if !ok {
		return
	}
	var req submitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		code := "invalid_request"
		if errors.Is(err, fsrs.ErrInvalidRating) {
			code = "invalid_rating"
		}
		response.RespondError(c, http.StatusBadRequest, code, err)
		return
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	}
	if len(key) > maxIdempotencyKeyLen {
		response.RespondError(c, http.StatusBadRequest, "invalid_idempotency_key", errors.New("idempotency key is too long"))
		return
	}

	res, err := h.svc.SubmitReview(c.Request.Context(), scheduler.ReviewInput{
		UserID:                userID,
		CardID:                cardID,
		Rating:                *req.Rating,
		ReviewDurationSeconds: req.ReviewDurationSeconds,
		IdempotencyKey:        key,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"card":       res.Card,
		"review_log": res.Log,
		"replayed":   res.Replayed,
	})
}

// GET /api/reviews/schedule?days_ahead=
func (h *ReviewHandler) GetUpcomingReviews(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	days := 7
	if raw := strings.TrimSpace(c.Query("days_ahead")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_days_ahead", err)
			return
		}
		days = n
	}
	schedule, err := h.svc.GetUpcomingReviews(c.Request.Context(), userID, days)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"days_ahead": days, "schedule": schedule})
}

// GET /api/reviews/retention/:card_id
func (h *ReviewHandler) PredictRetention(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	cardID, ok := uuidParam(c, "card_id")
	if !ok {
		return
	}
	r, err := h.svc.PredictRetention(c.Request.Context(), userID, cardID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"card_id": cardID, "retrievability": r})
}

// GET /api/reviews/preview/:card_id
func (h *ReviewHandler) PreviewReview(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	cardID, ok := uuidParam(c, "card_id")
	if !ok {
		return
	}
	previews, err := h.svc.PreviewReview(c.Request.Context(), userID, cardID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"card_id": cardID, "previews": previews})
}

// POST /api/reviews/cards
func (h *ReviewHandler) CreateCard(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	var req cardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	card, err := h.svc.CreateCard(c.Request.Context(), userID, req.toNewCard())
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"card": card})
}

// POST /api/reviews/cards/bulk
func (h *ReviewHandler) CreateCards(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 4<<20)
	var req bulkCardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	items := make([]domainagg.NewCard, 0, len(req.Cards))
	for _, r := range req.Cards {
		items = append(items, r.toNewCard())
	}
	cards, err := h.svc.CreateCards(c.Request.Context(), userID, items)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"cards": cards, "count": len(cards)})
}

// GET /api/reviews/stats
func (h *ReviewHandler) GetStats(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	stats, err := h.svc.GetCardStats(c.Request.Context(), userID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"stats": stats})
}

// POST /api/reviews/optimize
func (h *ReviewHandler) OptimizeParameters(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	var req optimizeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	res, err := h.svc.OptimizeParameters(c.Request.Context(), scheduler.OptimizeInput{
		UserID:     userID,
		TopicID:    req.TopicID,
		MinReviews: req.MinReviews,
	})
	if err != nil {
		h.log.Warn("OptimizeParameters failed", "error", err, "user_id", userID)
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"result": res})
}

// GET /api/reviews/mastery/:topic_id
func (h *ReviewHandler) GetTopicMastery(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	topicID, ok := uuidParam(c, "topic_id")
	if !ok {
		return
	}
	m, err := h.svc.GetTopicMastery(c.Request.Context(), userID, topicID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"mastery": m})
}

// DELETE /api/reviews/user
func (h *ReviewHandler) PurgeUser(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	res, err := h.svc.PurgeUser(c.Request.Context(), userID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	h.log.Info("User review data purged", "user_id", userID, "cards", res.Cards, "review_logs", res.ReviewLogs)
	response.RespondOK(c, gin.H{"deleted": res})
}
