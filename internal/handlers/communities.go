package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/threadline/backend/internal/logger"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/util"
	"gorm.io/gorm"
)

// CreateCommunityRequest is the body for creating a community
type CreateCommunityRequest struct {
	Name        string   `json:"name" binding:"required,min=3,max=30,alphanum"`
	Title       string   `json:"title" binding:"max=100"`
	Description string   `json:"description" binding:"max=500"`
	Topics      []string `json:"topics" binding:"max=5"`
}

// CreateCommunity registers a new community; the creator joins it as moderator
func (h *Handlers) CreateCommunity(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req CreateCommunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondValidationError(c, "", err.Error())
		return
	}

	var existing models.Community
	err := h.db.Where("LOWER(name) = LOWER(?)", req.Name).First(&existing).Error
	if err == nil {
		util.RespondConflict(c, "community name")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.ErrorWithFields("community lookup failed", err)
		util.RespondInternalError(c)
		return
	}

	community := models.Community{
		Name:         req.Name,
		Title:        req.Title,
		Description:  req.Description,
		Topics:       req.Topics,
		CreatedByID:  userID,
		MembersCount: 1,
	}
	if community.Title == "" {
		community.Title = req.Name
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&community).Error; err != nil {
			return err
		}
		membership := models.Membership{
			UserID:      userID,
			CommunityID: community.ID,
			Role:        "moderator",
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		logger.ErrorWithFields("community create failed", err)
		util.RespondInternalError(c)
		return
	}

	logger.Log.Info("community created", logger.WithUserID(userID))
	c.JSON(http.StatusCreated, community)
}

// GetCommunity returns one community by name
func (h *Handlers) GetCommunity(c *gin.Context) {
	community, ok := h.communityByName(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, community)
}

// ListCommunities returns communities, optionally filtered by a name or
// topic substring
func (h *Handlers) ListCommunities(c *gin.Context) {
	page, limit := util.ParsePagination(c.Query("page"), c.Query("limit"), defaultPageSize, maxPageSize)

	query := h.db.Model(&models.Community{}).Order("members_count DESC, created_at ASC")
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(title) LIKE ?", pattern, pattern)
	}

	var communities []models.Community
	err := query.Offset((page - 1) * limit).Limit(limit).Find(&communities).Error
	if err != nil {
		logger.ErrorWithFields("community listing failed", err)
		util.RespondInternalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"communities": communities,
		"page":        page,
		"limit":       limit,
	})
}

// GetCommunityPosts returns a community's posts in a named ordering
func (h *Handlers) GetCommunityPosts(c *gin.Context) {
	community, ok := h.communityByName(c)
	if !ok {
		return
	}
	userID := util.GetOptionalUserID(c)
	page, limit := util.ParsePagination(c.Query("page"), c.Query("limit"), defaultPageSize, maxPageSize)

	query := orderPosts(
		h.db.Model(&models.Post{}).Preload("Author").Preload("Community").
			Where("community_id = ?", community.ID),
		c.DefaultQuery("sort", "new"),
	)

	var posts []models.Post
	if err := query.Offset((page - 1) * limit).Limit(limit).Find(&posts).Error; err != nil {
		logger.ErrorWithFields("community posts query failed", err)
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

// communityByName resolves the :name route param, responding 404 on a miss
func (h *Handlers) communityByName(c *gin.Context) (*models.Community, bool) {
	var community models.Community
	err := h.db.Where("LOWER(name) = LOWER(?)", c.Param("name")).First(&community).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "community")
		return nil, false
	} else if err != nil {
		logger.ErrorWithFields("community lookup failed", err)
		util.RespondInternalError(c)
		return nil, false
	}
	return &community, true
}
