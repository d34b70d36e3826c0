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

// CustomFeedRequest is the body for creating or updating a custom feed.
// Community ids that don't resolve are dropped rather than rejected.
type CustomFeedRequest struct {
	Name         string   `json:"name" binding:"required,min=1,max=50"`
	Description  string   `json:"description" binding:"max=500"`
	IsPrivate    bool     `json:"is_private"`
	CommunityIDs []string `json:"community_ids"`
}

// CreateCustomFeed builds a user-curated multi-community feed
func (h *Handlers) CreateCustomFeed(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req CustomFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondValidationError(c, "", err.Error())
		return
	}

	validIDs, err := h.resolveCommunityIDs(req.CommunityIDs)
	if err != nil {
		logger.ErrorWithFields("community resolution failed", err)
		util.RespondInternalError(c)
		return
	}

	feed := models.CustomFeed{
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&feed).Error; err != nil {
			return err
		}
		for _, id := range validIDs {
			member := models.CustomFeedCommunity{FeedID: feed.ID, CommunityID: id}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.ErrorWithFields("custom feed create failed", err)
		util.RespondInternalError(c)
		return
	}

	h.db.Preload("Communities.Community").First(&feed, "id = ?", feed.ID)
	c.JSON(http.StatusCreated, feed)
}

// ListCustomFeeds returns the caller's own custom feeds
func (h *Handlers) ListCustomFeeds(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var feedList []models.CustomFeed
	err := h.db.Preload("Communities.Community").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&feedList).Error
	if err != nil {
		logger.ErrorWithFields("custom feed listing failed", err)
		util.RespondInternalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"feeds": feedList})
}

// GetCustomFeed returns one custom feed. Private feeds are only visible to
// their owner.
func (h *Handlers) GetCustomFeed(c *gin.Context) {
	feed, ok := h.visibleCustomFeed(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, feed)
}

// UpdateCustomFeed replaces a custom feed's attributes and community set
func (h *Handlers) UpdateCustomFeed(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	feed, ok := h.ownedCustomFeed(c, userID)
	if !ok {
		return
	}

	var req CustomFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondValidationError(c, "", err.Error())
		return
	}

	validIDs, err := h.resolveCommunityIDs(req.CommunityIDs)
	if err != nil {
		logger.ErrorWithFields("community resolution failed", err)
		util.RespondInternalError(c)
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"name":        req.Name,
			"description": req.Description,
			"is_private":  req.IsPrivate,
		}
		if err := tx.Model(feed).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Where("feed_id = ?", feed.ID).
			Delete(&models.CustomFeedCommunity{}).Error; err != nil {
			return err
		}
		for _, id := range validIDs {
			member := models.CustomFeedCommunity{FeedID: feed.ID, CommunityID: id}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.ErrorWithFields("custom feed update failed", err)
		util.RespondInternalError(c)
		return
	}

	h.db.Preload("Communities.Community").First(feed, "id = ?", feed.ID)
	c.JSON(http.StatusOK, feed)
}

// DeleteCustomFeed removes a custom feed and its community links
func (h *Handlers) DeleteCustomFeed(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	feed, ok := h.ownedCustomFeed(c, userID)
	if !ok {
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("feed_id = ?", feed.ID).
			Delete(&models.CustomFeedCommunity{}).Error; err != nil {
			return err
		}
		return tx.Delete(feed).Error
	})
	if err != nil {
		logger.ErrorWithFields("custom feed delete failed", err)
		util.RespondInternalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetCustomFeedPosts returns the newest posts across the feed's communities
func (h *Handlers) GetCustomFeedPosts(c *gin.Context) {
	feed, ok := h.visibleCustomFeed(c)
	if !ok {
		return
	}
	userID := util.GetOptionalUserID(c)
	page, limit := util.ParsePagination(c.Query("page"), c.Query("limit"), defaultPageSize, maxPageSize)

	communityIDs := make([]string, 0, len(feed.Communities))
	for _, member := range feed.Communities {
		communityIDs = append(communityIDs, member.CommunityID)
	}
	if len(communityIDs) == 0 {
		c.JSON(http.StatusOK, gin.H{"posts": []PostView{}, "page": page, "limit": limit})
		return
	}

	query := h.db.Model(&models.Post{}).
		Preload("Author").Preload("Community").
		Where("community_id IN ?", communityIDs).
		Order("created_at DESC")

	query, err := excludeHidden(query, h.db, userID)
	if err != nil {
		logger.ErrorWithFields("hidden post lookup failed", err)
		util.RespondInternalError(c)
		return
	}

	var posts []models.Post
	if err := query.Offset((page - 1) * limit).Limit(limit).Find(&posts).Error; err != nil {
		logger.ErrorWithFields("custom feed posts query failed", err)
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

// resolveCommunityIDs keeps only ids that name real communities, deduplicated
func (h *Handlers) resolveCommunityIDs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var found []string
	err := h.db.Model(&models.Community{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error
	if err != nil {
		return nil, err
	}

	valid := make(map[string]bool, len(found))
	for _, id := range found {
		valid[id] = true
	}

	kept := make([]string, 0, len(found))
	seen := make(map[string]bool, len(found))
	for _, id := range ids {
		if valid[id] && !seen[id] {
			kept = append(kept, id)
			seen[id] = true
		}
	}
	return kept, nil
}

// visibleCustomFeed resolves :id and enforces the privacy rule
func (h *Handlers) visibleCustomFeed(c *gin.Context) (*models.CustomFeed, bool) {
	var feed models.CustomFeed
	err := h.db.Preload("Communities.Community").First(&feed, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "custom feed")
		return nil, false
	} else if err != nil {
		logger.ErrorWithFields("custom feed lookup failed", err)
		util.RespondInternalError(c)
		return nil, false
	}

	if feed.IsPrivate && feed.UserID != util.GetOptionalUserID(c) {
		util.RespondForbidden(c, "this feed is private")
		return nil, false
	}
	return &feed, true
}

// ownedCustomFeed resolves :id and requires the caller to be the owner
func (h *Handlers) ownedCustomFeed(c *gin.Context, userID string) (*models.CustomFeed, bool) {
	var feed models.CustomFeed
	err := h.db.First(&feed, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "custom feed")
		return nil, false
	} else if err != nil {
		logger.ErrorWithFields("custom feed lookup failed", err)
		util.RespondInternalError(c)
		return nil, false
	}

	if feed.UserID != userID {
		util.RespondForbidden(c, "not your feed")
		return nil, false
	}
	return &feed, true
}
