package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/threadline/backend/internal/logger"
	"github.com/threadline/backend/internal/middleware"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/threads"
	"github.com/threadline/backend/internal/util"
	"github.com/threadline/backend/internal/votes"
	"gorm.io/gorm"
)

// CreateCommentRequest is the body for creating a comment. ParentID nests the
// comment under an existing one on the same post.
type CreateCommentRequest struct {
	Body     string  `json:"body" binding:"required,min=1,max=10000"`
	ParentID *string `json:"parent_id"`
}

// CreateComment adds a comment to a post, optionally as a reply. The post's
// comment counter moves in the same transaction as the insert.
func (h *Handlers) CreateComment(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	postID := c.Param("id")

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondValidationError(c, "", err.Error())
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		util.RespondValidationError(c, "body", "body must not be blank")
		return
	}

	var post models.Post
	err := h.db.First(&post, "id = ?", postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "post")
		return
	} else if err != nil {
		logger.ErrorWithFields("post lookup failed", err)
		util.RespondInternalError(c)
		return
	}

	depth := 0
	if req.ParentID != nil {
		var parent models.Comment
		err := h.db.First(&parent, "id = ?", *req.ParentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.RespondNotFound(c, "parent comment")
			return
		} else if err != nil {
			logger.ErrorWithFields("parent comment lookup failed", err)
			util.RespondInternalError(c)
			return
		}
		if parent.PostID != postID {
			util.RespondValidationError(c, "parent_id", "parent comment belongs to a different post")
			return
		}
		depth = parent.Depth + 1
	}

	comment := models.Comment{
		PostID:   postID,
		AuthorID: userID,
		ParentID: req.ParentID,
		Body:     req.Body,
		Depth:    depth,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error
	})
	if err != nil {
		logger.ErrorWithFields("comment create failed", err)
		util.RespondInternalError(c)
		return
	}

	middleware.RecordCommentCreated()
	logger.Log.Info("comment created",
		logger.WithUserID(userID),
		logger.WithPostID(postID),
	)

	h.db.Preload("Author").First(&comment, "id = ?", comment.ID)
	c.JSON(http.StatusCreated, comment)
}

// GetComments returns a post's assembled comment thread
func (h *Handlers) GetComments(c *gin.Context) {
	userID := util.GetOptionalUserID(c)
	postID := c.Param("id")

	var post models.Post
	err := h.db.First(&post, "id = ?", postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "post")
		return
	} else if err != nil {
		logger.ErrorWithFields("post lookup failed", err)
		util.RespondInternalError(c)
		return
	}

	tree, err := h.loadCommentTree(postID, userID, c.DefaultQuery("sort", threads.OrderBest))
	if err != nil {
		logger.ErrorWithFields("comment tree load failed", err)
		util.RespondInternalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": tree})
}

// VoteComment applies the caller's vote to a comment
func (h *Handlers) VoteComment(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondValidationError(c, "value", "value is required")
		return
	}

	score, err := votes.Apply(h.db, votes.KindComment, c.Param("id"), userID, *req.Value)
	if err != nil {
		switch {
		case errors.Is(err, votes.ErrInvalidValue):
			util.RespondValidationError(c, "value", "value must be -1, 0, or 1")
		case errors.Is(err, gorm.ErrRecordNotFound):
			util.RespondNotFound(c, "comment")
		default:
			logger.ErrorWithFields("comment vote failed", err)
			util.RespondInternalError(c)
		}
		return
	}

	middleware.RecordVote("comment")
	c.JSON(http.StatusOK, gin.H{
		"score":     score,
		"user_vote": *req.Value,
	})
}

// loadCommentTree fetches a post's comments flat, orders them, and assembles
// the reply forest annotated with the caller's votes
func (h *Handlers) loadCommentTree(postID, userID, sort string) ([]*threads.Node, error) {
	var flat []models.Comment
	err := h.db.Preload("Author").Where("post_id = ?", postID).Find(&flat).Error
	if err != nil {
		return nil, err
	}

	threads.SortFlat(flat, sort)

	ids := make([]string, len(flat))
	for i, cm := range flat {
		ids[i] = cm.ID
	}
	states, err := votes.CommentStates(h.db, userID, ids)
	if err != nil {
		return nil, err
	}

	return threads.Build(flat, states), nil
}
