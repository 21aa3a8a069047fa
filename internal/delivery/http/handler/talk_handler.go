package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	entity "simbi-market/internal/domain"
	"simbi-market/internal/gateway"
	repo "simbi-market/internal/repository/postgresql"
	service "simbi-market/internal/service/postgresql"
)

type TalkHandler struct {
	talkService   *service.TalkService
	offerService  *service.OfferService
	orderService  *service.OrderService
	holdService   *service.HoldService
	ratingService *service.RatingService
}

func NewTalkHandler(
	talkService *service.TalkService,
	offerService *service.OfferService,
	orderService *service.OrderService,
	holdService *service.HoldService,
	ratingService *service.RatingService,
) *TalkHandler {
	return &TalkHandler{
		talkService:   talkService,
		offerService:  offerService,
		orderService:  orderService,
		holdService:   holdService,
		ratingService: ratingService,
	}
}

type messageRequest struct {
	Message string `json:"message" binding:"required"`
}

type confirmRequest struct {
	Ratings []entity.RatingInput `json:"ratings" binding:"required,dive"`
	Review  string               `json:"review" binding:"required"`
}

type reviewRequest struct {
	Message string               `json:"message" binding:"required"`
	Ratings []entity.RatingInput `json:"ratings" binding:"omitempty,dive"`
}

type holdRequest struct {
	OrderID string `json:"order_id"`
}

type talkIDsRequest struct {
	TalkIDs []string `json:"talk_ids" binding:"required"`
}

// POST /talks
func (h *TalkHandler) CreateTalk(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var input entity.CreateTalkInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	talk, err := h.talkService.Create(c.Request.Context(), userID, &input)
	if err != nil {
		respondError(c, err)
		return
	}

	// An initial offer or order rides along with the talk.
	var offer *entity.Offer
	var order *entity.Order
	if input.Offer != nil {
		var ferrs entity.FieldErrors
		offer, ferrs, err = h.offerService.Create(c.Request.Context(), talk.ID, userID, input.Offer)
		if err != nil {
			respondError(c, err)
			return
		}
		if ferrs.Any() {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": ferrs, "talk": talk})
			return
		}
	} else if input.Order {
		orderInput := &entity.CreateOrderInput{ServiceID: input.ServiceID, Count: input.Count}
		var ferrs entity.FieldErrors
		order, ferrs, err = h.orderService.Create(c.Request.Context(), talk.ID, userID, orderInput)
		if err != nil {
			respondError(c, err)
			return
		}
		if ferrs.Any() {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": ferrs, "talk": talk})
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{"talk": talk, "offer": offer, "order": order})
}

// POST /talks/:id/message
func (h *TalkHandler) SendMessage(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	talkID, ok := parseID(c)
	if !ok {
		return
	}

	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.talkService.SendMessage(c.Request.Context(), talkID, userID, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// POST /talks/:id/offer
func (h *TalkHandler) CreateOffer(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	talkID, ok := parseID(c)
	if !ok {
		return
	}

	var input entity.CreateOfferInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	offer, ferrs, err := h.offerService.Create(c.Request.Context(), talkID, userID, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	if ferrs.Any() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": ferrs})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"offer": offer})
}

// POST /talks/:id/accept
func (h *TalkHandler) AcceptOffer(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	talkID, ok := parseID(c)
	if !ok {
		return
	}

	offer, err := h.offerService.Accept(c.Request.Context(), talkID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offer": offer})
}

// POST /talks/:id/close
func (h *TalkHandler) CloseOffer(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	talkID, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.offerService.Close(c.Request.Context(), talkID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "offer closed"})
}

// POST /talks/:id/confirm
// The confirm flow checks the guards, saves the actor's ratings, moves the
// offer, then stores the review, in that order. A rejected confirm writes
// nothing.
func (h *TalkHandler) ConfirmOffer(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	talkID, ok := parseID(c)
	if !ok {
		return
	}

	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participants, err := h.talkService.Participants(talkID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	subjectID := other(participants, userID)

	last, err := h.offerService.Last(talkID)
	if err != nil {
		respondError(c, err)
		return
	}
	if last == nil {
		respondError(c, service.ErrOfferNotFound)
		return
	}

	if err := h.offerService.CanConfirm(c.Request.Context(), talkID, userID); err != nil {
		respondError(c, err)
		return
	}

	ferrs, err := h.ratingService.SaveRatings(c.Request.Context(), talkID, userID, subjectID, last.ID, entity.ItemTypeOffer, req.Ratings)
	if err != nil {
		respondError(c, err)
		return
	}
	if ferrs.Any() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": ferrs})
		return
	}

	offer, err := h.offerService.Confirm(c.Request.Context(), talkID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	review, err := h.ratingService.CreateReview(c.Request.Context(), talkID, userID, subjectID, offer.ID, entity.ItemTypeOffer, req.Review)
	if err != nil && !errors.Is(err, service.ErrAlreadyReviewed) {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"offer": offer, "review": review})
}

// POST /talks/:id/cancel
func (h *TalkHandler) CancelOffer(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	talkID, ok := parseID(c)
	if !ok {
		return
	}

	var input entity.CancelInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participants, err := h.talkService.Participants(talkID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	offer, err := h.offerService.Cancel(c.Request.Context(), talkID, userID, &input)
	if err != nil {
		respondError(c, err)
		return
	}

	if input.ReasonKind == entity.CancelKindNoResponse {
		subjectID := other(participants, userID)
		if err := h.ratingService.RecordNoResponse(c.Request.Context(), talkID, userID, subjectID); err != nil {
			log.Printf("Warning: failed to record no-response rating: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"offer": offer})
}

// POST /talks/:id/order
func (h *TalkHandler) CreateOrder(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	talkID, ok := parseID(c)
	if !ok {
		return
	}

	var input entity.CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, ferrs, err := h.orderService.Create(c.Request.Context(), talkID, userID, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	if ferrs.Any() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": ferrs})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// POST /talks/:id/accept_order
func (h *TalkHandler) AcceptOrder(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	talkID, ok := parseID(c)
	if !ok {
		return
	}

	order, err := h.orderService.Accept(c.Request.Context(), talkID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// POST /talks/:id/cancel_order
func (h *TalkHandler) CancelOrder(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	talkID, ok := parseID(c)
	if !ok {
		return
	}

	var input entity.CancelInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participants, err := h.talkService.Participants(talkID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	order, err := h.orderService.Cancel(c.Request.Context(), talkID, userID, &input)
	if err != nil {
		respondError(c, err)
		return
	}

	if input.ReasonKind == entity.CancelKindNoResponse {
		subjectID := other(participants, userID)
		if err := h.ratingService.RecordNoResponse(c.Request.Context(), talkID, userID, subjectID); err != nil {
			log.Printf("Warning: failed to record no-response rating: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// POST /talks/:id/confirm_delivery
// Buyer-only. Same ordering as offer confirm: guards, ratings, transition,
// review.
func (h *TalkHandler) ConfirmDelivery(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	talkID, ok := parseID(c)
	if !ok {
		return
	}

	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participants, err := h.talkService.Participants(talkID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	subjectID := other(participants, userID)

	last, err := h.orderService.Last(talkID)
	if err != nil {
		respondError(c, err)
		return
	}
	if last == nil {
		respondError(c, service.ErrOrderNotFound)
		return
	}

	if err := h.orderService.CanConfirmDelivery(talkID, userID); err != nil {
		respondError(c, err)
		return
	}

	ferrs, err := h.ratingService.SaveRatings(c.Request.Context(), talkID, userID, subjectID, last.ID, entity.ItemTypeOrder, req.Ratings)
	if err != nil {
		respondError(c, err)
		return
	}
	if ferrs.Any() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": ferrs})
		return
	}

	order, err := h.orderService.ConfirmDelivery(c.Request.Context(), talkID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	review, err := h.ratingService.CreateReview(c.Request.Context(), talkID, userID, subjectID, order.ID, entity.ItemTypeOrder, req.Review)
	if err != nil && !errors.Is(err, service.ErrAlreadyReviewed) {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order, "review": review})
}

// POST /talks/:id/rate
func (h *TalkHandler) Rate(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	talkID, ok := parseID(c)
	if !ok {
		return
	}

	var req struct {
		Ratings []entity.RatingInput `json:"ratings" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participants, err := h.talkService.Participants(talkID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	subjectID := other(participants, userID)

	itemID, itemType, err := h.currentItem(talkID)
	if err != nil {
		respondError(c, err)
		return
	}

	ferrs, err := h.ratingService.SaveRatings(c.Request.Context(), talkID, userID, subjectID, itemID, itemType, req.Ratings)
	if err != nil {
		respondError(c, err)
		return
	}
	if ferrs.Any() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": ferrs})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ratings saved"})
}

// POST /talks/:id/review
func (h *TalkHandler) CreateReview(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	talkID, ok := parseID(c)
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participants, err := h.talkService.Participants(talkID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	subjectID := other(participants, userID)

	itemID, itemType, err := h.currentItem(talkID)
	if err != nil {
		respondError(c, err)
		return
	}

	review, err := h.ratingService.CreateReview(c.Request.Context(), talkID, userID, subjectID, itemID, itemType, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"review": review})
}

// PUT /talks/:id/review
func (h *TalkHandler) UpdateReview(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	talkID, ok := parseID(c)
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participants, err := h.talkService.Participants(talkID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	itemID, itemType, err := h.currentItem(talkID)
	if err != nil {
		respondError(c, err)
		return
	}

	if len(req.Ratings) > 0 {
		subjectID := other(participants, userID)
		ferrs, err := h.ratingService.SaveRatings(c.Request.Context(), talkID, userID, subjectID, itemID, itemType, req.Ratings)
		if err != nil {
			respondError(c, err)
			return
		}
		if ferrs.Any() {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": ferrs})
			return
		}
	}

	review, err := h.ratingService.UpdateReview(talkID, userID, itemID, itemType, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"review": review})
}

// POST /talks/:id/on_hold
func (h *TalkHandler) OnHold(c *gin.Context) {
	h.hold(c, h.holdService.OnHold)
}

// POST /talks/:id/off_hold
func (h *TalkHandler) OffHold(c *gin.Context) {
	h.hold(c, h.holdService.OffHold)
}

func (h *TalkHandler) hold(c *gin.Context, action func(ctx context.Context, talkID, actorID uuid.UUID, orderID *uuid.UUID) (string, uuid.UUID, error)) {
	userID := c.MustGet("user_id").(uuid.UUID)
	talkID, ok := parseID(c)
	if !ok {
		return
	}

	// The body is optional: an empty body targets the talk's current item.
	var req holdRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var orderID *uuid.UUID
	if req.OrderID != "" {
		id, err := uuid.Parse(req.OrderID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order_id"})
			return
		}
		orderID = &id
	}

	itemType, itemID, err := action(c.Request.Context(), talkID, userID, orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_id": itemID, "item_type": itemType})
}

// POST /talks/read, /talks/unread, /talks/archive, /talks/unarchive
func (h *TalkHandler) MarkRead(c *gin.Context)   { h.bulk(c, h.talkService.MarkRead) }
func (h *TalkHandler) MarkUnread(c *gin.Context) { h.bulk(c, h.talkService.MarkUnread) }
func (h *TalkHandler) Archive(c *gin.Context)    { h.bulk(c, h.talkService.Archive) }
func (h *TalkHandler) Unarchive(c *gin.Context)  { h.bulk(c, h.talkService.Unarchive) }

func (h *TalkHandler) bulk(c *gin.Context, action func(talkIDs []uuid.UUID, userID uuid.UUID) error) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req talkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	talkIDs := make([]uuid.UUID, 0, len(req.TalkIDs))
	for _, raw := range req.TalkIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid talk id: " + raw})
			return
		}
		talkIDs = append(talkIDs, id)
	}

	if err := action(talkIDs, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// GET /talks/unread_count
func (h *TalkHandler) UnreadCount(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	count, err := h.talkService.UnreadCount(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// GET /talks/tab_counts
func (h *TalkHandler) TabCounts(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	counts, err := h.talkService.TabCounts(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// currentItem resolves the talk's active deal: the newest offer, else the
// newest order.
func (h *TalkHandler) currentItem(talkID uuid.UUID) (uuid.UUID, string, error) {
	offer, err := h.offerService.Last(talkID)
	if err != nil {
		return uuid.Nil, "", err
	}
	if offer != nil {
		return offer.ID, entity.ItemTypeOffer, nil
	}
	order, err := h.orderService.Last(talkID)
	if err != nil {
		return uuid.Nil, "", err
	}
	if order != nil {
		return order.ID, entity.ItemTypeOrder, nil
	}
	return uuid.Nil, "", service.ErrOfferNotFound
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid talk id"})
		return uuid.Nil, false
	}
	return id, true
}

func other(participants []uuid.UUID, userID uuid.UUID) uuid.UUID {
	for _, p := range participants {
		if p != userID {
			return p
		}
	}
	return uuid.Nil
}

// respondError maps service errors to HTTP statuses. Card declines get a
// stable error code the client can branch on.
func respondError(c *gin.Context, err error) {
	if gateway.IsDecline(err) {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "payment_declined", "detail": err.Error()})
		return
	}

	switch {
	case errors.Is(err, service.ErrTalkNotFound),
		errors.Is(err, service.ErrOfferNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrReviewNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrNoHoldableItem):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotParticipant),
		errors.Is(err, service.ErrNotSeller),
		errors.Is(err, service.ErrNotBuyer),
		errors.Is(err, service.ErrOwnOffer):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrOfferStatus),
		errors.Is(err, service.ErrOrderStatus),
		errors.Is(err, service.ErrAlreadyConfirmed),
		errors.Is(err, service.ErrAlreadyReviewed),
		errors.Is(err, repo.ErrInsufficientBalance):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSelfTalk),
		errors.Is(err, service.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
