package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"item_recovery/internal/service"
	"item_recovery/pkg/errors"
	"item_recovery/pkg/logger"
)

type ConversationHandler struct {
	conversationService service.ConversationService
	messageService      service.MessageService
	log                 logger.Logger
}

func NewConversationHandler(conversationService service.ConversationService, messageService service.MessageService, log logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		messageService:      messageService,
		log:                 log,
	}
}

func (h *ConversationHandler) List(c *gin.Context) {
	principalID := c.MustGet("principal_id").(uuid.UUID)
	status := c.Query("status")

	conversations, err := h.conversationService.List(c.Request.Context(), principalID, status)
	if err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, conversations)
}

type CreateConversationRequest struct {
	ItemRef        string    `json:"item_ref" binding:"required"`
	CounterpartyID uuid.UUID `json:"counterparty_id" binding:"required"`
}

func (h *ConversationHandler) Create(c *gin.Context) {
	principalID := c.MustGet("principal_id").(uuid.UUID)

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversation, created, err := h.conversationService.Create(c.Request.Context(), req.ItemRef, principalID, req.CounterpartyID)
	if err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, conversation)
}

func (h *ConversationHandler) GetByID(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}
	principalID := c.MustGet("principal_id").(uuid.UUID)

	conversation, err := h.conversationService.GetForPrincipal(c.Request.Context(), conversationID, principalID)
	if err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, conversation)
}

func (h *ConversationHandler) GetMessages(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}
	principalID := c.MustGet("principal_id").(uuid.UUID)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.messageService.History(c.Request.Context(), conversationID, principalID, limit, offset)
	if err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, messages)
}

func (h *ConversationHandler) GetUnreadCount(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}
	principalID := c.MustGet("principal_id").(uuid.UUID)

	// Членство проверяется до подсчёта, иначе утекает факт существования
	if _, err := h.conversationService.GetForPrincipal(c.Request.Context(), conversationID, principalID); err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	count, err := h.messageService.UnreadCount(c.Request.Context(), conversationID, principalID)
	if err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *ConversationHandler) Close(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}
	principalID := c.MustGet("principal_id").(uuid.UUID)

	if _, err := h.conversationService.GetForPrincipal(c.Request.Context(), conversationID, principalID); err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	conversation, err := h.conversationService.Close(c.Request.Context(), conversationID, &principalID)
	if err != nil {
		c.JSON(errors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, conversation)
}
