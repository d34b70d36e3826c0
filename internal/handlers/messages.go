package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/threadline/backend/internal/logger"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/util"
	"gorm.io/gorm"
)

// SendMessageRequest is the body for sending a direct message
type SendMessageRequest struct {
	RecipientUsername string `json:"recipient_username" binding:"required"`
	Body              string `json:"body" binding:"required,min=1,max=10000"`
}

// SendMessage delivers a direct message to another user
func (h *Handlers) SendMessage(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondValidationError(c, "", err.Error())
		return
	}

	var recipient models.User
	err := h.db.Where("LOWER(username) = LOWER(?)", req.RecipientUsername).
		First(&recipient).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "recipient")
		return
	} else if err != nil {
		logger.ErrorWithFields("recipient lookup failed", err)
		util.RespondInternalError(c)
		return
	}

	if recipient.ID == userID {
		util.RespondValidationError(c, "recipient_username", "cannot message yourself")
		return
	}

	message := models.Message{
		SenderID:    userID,
		RecipientID: recipient.ID,
		Body:        req.Body,
	}
	if err := h.db.Create(&message).Error; err != nil {
		logger.ErrorWithFields("message create failed", err)
		util.RespondInternalError(c)
		return
	}

	h.db.Preload("Sender").Preload("Recipient").First(&message, "id = ?", message.ID)
	c.JSON(http.StatusCreated, message)
}

// GetInbox returns messages sent to the caller, newest first, plus the
// unread count
func (h *Handlers) GetInbox(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	page, limit := util.ParsePagination(c.Query("page"), c.Query("limit"), defaultPageSize, maxPageSize)

	var messages []models.Message
	err := h.db.Preload("Sender").
		Where("recipient_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&messages).Error
	if err != nil {
		logger.ErrorWithFields("inbox query failed", err)
		util.RespondInternalError(c)
		return
	}

	var unread int64
	err = h.db.Model(&models.Message{}).
		Where("recipient_id = ? AND read_at IS NULL", userID).
		Count(&unread).Error
	if err != nil {
		logger.ErrorWithFields("unread count failed", err)
		util.RespondInternalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"unread":   unread,
		"page":     page,
		"limit":    limit,
	})
}

// GetConversation returns the two-way message history with one user, oldest
// first, and marks the other party's messages as read
func (h *Handlers) GetConversation(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var other models.User
	err := h.db.Where("LOWER(username) = LOWER(?)", c.Param("username")).
		First(&other).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "user")
		return
	} else if err != nil {
		logger.ErrorWithFields("user lookup failed", err)
		util.RespondInternalError(c)
		return
	}

	var messages []models.Message
	err = h.db.Preload("Sender").Preload("Recipient").
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			userID, other.ID, other.ID, userID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		logger.ErrorWithFields("conversation query failed", err)
		util.RespondInternalError(c)
		return
	}

	now := time.Now()
	err = h.db.Model(&models.Message{}).
		Where("sender_id = ? AND recipient_id = ? AND read_at IS NULL", other.ID, userID).
		Update("read_at", now).Error
	if err != nil {
		logger.WarnWithFields("read receipt update failed", err)
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages, "with": other.Username})
}
