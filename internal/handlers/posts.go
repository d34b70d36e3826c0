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

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// CreatePostRequest is the body for creating a post. Body, URL and MediaURL
// are optional and may be combined.
type CreatePostRequest struct {
	Title       string  `json:"title" binding:"required,min=1,max=300"`
	Body        string  `json:"body" binding:"max=40000"`
	URL         string  `json:"url" binding:"omitempty,url"`
	MediaURL    string  `json:"media_url" binding:"omitempty,url"`
	CommunityID *string `json:"community_id"`
}

// CreatePost submits a new post, optionally into a community
func (h *Handlers) CreatePost(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondValidationError(c, "", err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		util.RespondValidationError(c, "title", "title must not be blank")
		return
	}

	if req.CommunityID != nil {
		var community models.Community
		err := h.db.First(&community, "id = ?", *req.CommunityID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.RespondNotFound(c, "community")
			return
		} else if err != nil {
			logger.ErrorWithFields("community lookup failed", err)
			util.RespondInternalError(c)
			return
		}
	}

	post := models.Post{
		Title:       req.Title,
		Body:        req.Body,
		URL:         req.URL,
		MediaURL:    req.MediaURL,
		AuthorID:    userID,
		CommunityID: req.CommunityID,
	}
	if err := h.db.Create(&post).Error; err != nil {
		logger.ErrorWithFields("post create failed", err)
		util.RespondInternalError(c)
		return
	}

	middleware.RecordPostCreated()
	logger.Log.Info("post created",
		logger.WithUserID(userID),
		logger.WithPostID(post.ID),
	)

	h.db.Preload("Author").Preload("Community").First(&post, "id = ?", post.ID)
	c.JSON(http.StatusCreated, PostView{Post: post})
}

// ListPosts returns posts filtered by community, author, or the caller's
// relationship to them, in one of the named orderings: new (default), best,
// top. Hidden posts stay out of the listing except under filter=hidden.
func (h *Handlers) ListPosts(c *gin.Context) {
	userID := util.GetOptionalUserID(c)
	page, limit := util.ParsePagination(c.Query("page"), c.Query("limit"), defaultPageSize, maxPageSize)

	query := h.db.Model(&models.Post{}).Preload("Author").Preload("Community")

	if communityID := c.Query("community_id"); communityID != "" {
		query = query.Where("community_id = ?", communityID)
	}
	if author := c.Query("author"); author != "" {
		query = query.Where(
			"author_id IN (?)",
			h.db.Model(&models.User{}).Select("id").Where("LOWER(username) = LOWER(?)", author),
		)
	}

	filter := c.Query("filter")
	if filter != "" {
		if userID == "" {
			util.RespondUnauthorized(c, "filter requires authentication")
			return
		}
		filtered, ok := h.applyPostFilter(query, userID, filter)
		if !ok {
			util.RespondValidationError(c, "filter", "filter must be saved, hidden, upvoted, or downvoted")
			return
		}
		query = filtered
	}

	if filter != "hidden" {
		var err error
		query, err = excludeHidden(query, h.db, userID)
		if err != nil {
			logger.ErrorWithFields("hidden post lookup failed", err)
			util.RespondInternalError(c)
			return
		}
	}

	query = orderPosts(query, c.DefaultQuery("sort", "new"))

	var posts []models.Post
	err := query.Offset((page - 1) * limit).Limit(limit).Find(&posts).Error
	if err != nil {
		logger.ErrorWithFields("post listing failed", err)
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

// applyPostFilter restricts a post query to the caller's saved, hidden, or
// voted posts
func (h *Handlers) applyPostFilter(query *gorm.DB, userID, filter string) (*gorm.DB, bool) {
	switch filter {
	case "saved":
		sub := h.db.Model(&models.SavedPost{}).Select("post_id").Where("user_id = ?", userID)
		return query.Where("id IN (?)", sub), true
	case "hidden":
		sub := h.db.Model(&models.HiddenPost{}).Select("post_id").Where("user_id = ?", userID)
		return query.Where("id IN (?)", sub), true
	case "upvoted":
		sub := h.db.Model(&models.PostVote{}).Select("post_id").Where("user_id = ? AND value = ?", userID, votes.Up)
		return query.Where("id IN (?)", sub), true
	case "downvoted":
		sub := h.db.Model(&models.PostVote{}).Select("post_id").Where("user_id = ? AND value = ?", userID, votes.Down)
		return query.Where("id IN (?)", sub), true
	default:
		return nil, false
	}
}

// orderPosts applies a named sort policy to a post query. The id closes
// every ordering so pages stay stable when timestamps collide.
func orderPosts(query *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case "best":
		return query.Order("score DESC, created_at DESC, id")
	case "top":
		// live vote count, not the cached score
		return query.Order("(SELECT COUNT(*) FROM post_votes WHERE post_votes.post_id = posts.id) DESC, posts.created_at DESC, posts.id")
	default: // new
		return query.Order("created_at DESC, id")
	}
}

// GetPost returns one post with its assembled comment thread
func (h *Handlers) GetPost(c *gin.Context) {
	userID := util.GetOptionalUserID(c)
	postID := c.Param("id")

	var post models.Post
	err := h.db.Preload("Author").Preload("Community").First(&post, "id = ?", postID).Error
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

	views, err := buildPostViews(h.db, userID, []models.Post{post})
	if err != nil {
		logger.ErrorWithFields("post annotation failed", err)
		util.RespondInternalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"post":     views[0],
		"comments": tree,
	})
}

// VoteRequest carries a vote value: 1, -1, or 0 to clear
type VoteRequest struct {
	Value *int `json:"value" binding:"required"`
}

// VotePost applies the caller's vote to a post
func (h *Handlers) VotePost(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondValidationError(c, "value", "value is required")
		return
	}

	score, err := votes.Apply(h.db, votes.KindPost, c.Param("id"), userID, *req.Value)
	if err != nil {
		switch {
		case errors.Is(err, votes.ErrInvalidValue):
			util.RespondValidationError(c, "value", "value must be -1, 0, or 1")
		case errors.Is(err, gorm.ErrRecordNotFound):
			util.RespondNotFound(c, "post")
		default:
			logger.ErrorWithFields("post vote failed", err)
			util.RespondInternalError(c)
		}
		return
	}

	middleware.RecordVote("post")
	c.JSON(http.StatusOK, gin.H{
		"score":     score,
		"user_vote": *req.Value,
	})
}

// SavePost bookmarks a post for the caller
func (h *Handlers) SavePost(c *gin.Context) {
	h.setPostFlag(c, "saved post", func(userID, postID string) error {
		return h.db.Create(&models.SavedPost{UserID: userID, PostID: postID}).Error
	})
}

// UnsavePost removes a bookmark
func (h *Handlers) UnsavePost(c *gin.Context) {
	h.clearPostFlag(c, "saved post", &models.SavedPost{})
}

// HidePost removes a post from the caller's feeds
func (h *Handlers) HidePost(c *gin.Context) {
	h.setPostFlag(c, "hidden post", func(userID, postID string) error {
		return h.db.Create(&models.HiddenPost{UserID: userID, PostID: postID}).Error
	})
}

// UnhidePost restores a hidden post to the caller's feeds
func (h *Handlers) UnhidePost(c *gin.Context) {
	h.clearPostFlag(c, "hidden post", &models.HiddenPost{})
}

// setPostFlag creates a per-user post marker row; duplicates come back 409
func (h *Handlers) setPostFlag(c *gin.Context, resource string, create func(userID, postID string) error) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
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

	if err := create(userID, postID); err != nil {
		// the unique pair index rejects a second marker
		util.RespondConflict(c, resource)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok"})
}

// clearPostFlag deletes a per-user post marker row; a missing row is 409
func (h *Handlers) clearPostFlag(c *gin.Context, resource string, model interface{}) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	postID := c.Param("id")

	result := h.db.Where("user_id = ? AND post_id = ?", userID, postID).Delete(model)
	if result.Error != nil {
		logger.ErrorWithFields("post flag delete failed", result.Error)
		util.RespondInternalError(c)
		return
	}
	if result.RowsAffected == 0 {
		util.RespondConflict(c, resource)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
