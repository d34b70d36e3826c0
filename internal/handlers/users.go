package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/threadline/backend/internal/logger"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/util"
	"gorm.io/gorm"
)

// GetUserProfile returns a user's public profile with karma and counts
func (h *Handlers) GetUserProfile(c *gin.Context) {
	user, ok := h.userByUsername(c)
	if !ok {
		return
	}

	var postCount, commentCount int64
	h.db.Model(&models.Post{}).Where("author_id = ?", user.ID).Count(&postCount)
	h.db.Model(&models.Comment{}).Where("author_id = ?", user.ID).Count(&commentCount)

	c.JSON(http.StatusOK, gin.H{
		"user":          user,
		"post_count":    postCount,
		"comment_count": commentCount,
	})
}

// GetUserPosts returns a user's posts, newest first
func (h *Handlers) GetUserPosts(c *gin.Context) {
	user, ok := h.userByUsername(c)
	if !ok {
		return
	}
	viewerID := util.GetOptionalUserID(c)
	page, limit := util.ParsePagination(c.Query("page"), c.Query("limit"), defaultPageSize, maxPageSize)

	var posts []models.Post
	err := h.db.Preload("Author").Preload("Community").
		Where("author_id = ?", user.ID).
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&posts).Error
	if err != nil {
		logger.ErrorWithFields("user posts query failed", err)
		util.RespondInternalError(c)
		return
	}

	views, err := buildPostViews(h.db, viewerID, posts)
	if err != nil {
		logger.ErrorWithFields("post annotation failed", err)
		util.RespondInternalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts": views,
		"page":  page,
		"limit": limit,
	})
}

// GetUserComments returns a user's comments, newest first
func (h *Handlers) GetUserComments(c *gin.Context) {
	user, ok := h.userByUsername(c)
	if !ok {
		return
	}
	page, limit := util.ParsePagination(c.Query("page"), c.Query("limit"), defaultPageSize, maxPageSize)

	var comments []models.Comment
	err := h.db.Preload("Author").
		Where("author_id = ?", user.ID).
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&comments).Error
	if err != nil {
		logger.ErrorWithFields("user comments query failed", err)
		util.RespondInternalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": comments,
		"page":     page,
		"limit":    limit,
	})
}

// GetSavedPosts returns the caller's bookmarked posts, most recently saved
// first
func (h *Handlers) GetSavedPosts(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	page, limit := util.ParsePagination(c.Query("page"), c.Query("limit"), defaultPageSize, maxPageSize)

	var saved []models.SavedPost
	err := h.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&saved).Error
	if err != nil {
		logger.ErrorWithFields("saved posts query failed", err)
		util.RespondInternalError(c)
		return
	}

	ids := make([]string, len(saved))
	for i, s := range saved {
		ids[i] = s.PostID
	}
	posts, err := h.postsByIDs(ids)
	if err != nil {
		logger.ErrorWithFields("saved posts load failed", err)
		util.RespondInternalError(c)
		return
	}

	views, err := buildPostViews(h.db, userID, posts)
	if err != nil {
		logger.ErrorWithFields("post annotation failed", err)
		util.RespondInternalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts": views,
		"page":  page,
		"limit": limit,
	})
}

// userByUsername resolves the :username route param, responding 404 on a miss
func (h *Handlers) userByUsername(c *gin.Context) (*models.User, bool) {
	var user models.User
	err := h.db.Where("LOWER(username) = LOWER(?)", c.Param("username")).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "user")
		return nil, false
	} else if err != nil {
		logger.ErrorWithFields("user lookup failed", err)
		util.RespondInternalError(c)
		return nil, false
	}
	return &user, true
}
