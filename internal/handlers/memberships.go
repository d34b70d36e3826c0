package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/threadline/backend/internal/logger"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/util"
	"gorm.io/gorm"
)

// JoinCommunity adds the caller to a community. Joining twice is a conflict;
// the members counter moves in the same transaction as the membership row.
func (h *Handlers) JoinCommunity(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	community, ok := h.communityByName(c)
	if !ok {
		return
	}

	var existing models.Membership
	err := h.db.Where("user_id = ? AND community_id = ?", userID, community.ID).
		First(&existing).Error
	if err == nil {
		util.RespondConflict(c, "membership")
		return
	}

	membership := models.Membership{
		UserID:      userID,
		CommunityID: community.ID,
	}
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}
		return tx.Model(&models.Community{}).Where("id = ?", community.ID).
			UpdateColumn("members_count", gorm.Expr("members_count + 1")).Error
	})
	if err != nil {
		logger.ErrorWithFields("community join failed", err)
		util.RespondInternalError(c)
		return
	}

	logger.Log.Info("community joined", logger.WithUserID(userID))
	c.JSON(http.StatusCreated, membership)
}

// LeaveCommunity removes the caller's membership. Leaving a community the
// caller never joined is a conflict, matching the redundant unsave/unhide
// responses.
func (h *Handlers) LeaveCommunity(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	community, ok := h.communityByName(c)
	if !ok {
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("user_id = ? AND community_id = ?", userID, community.ID).
			Delete(&models.Membership{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Community{}).Where("id = ?", community.ID).
			UpdateColumn("members_count", gorm.Expr("members_count - 1")).Error
	})
	if err == gorm.ErrRecordNotFound {
		util.RespondConflict(c, "membership")
		return
	} else if err != nil {
		logger.ErrorWithFields("community leave failed", err)
		util.RespondInternalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// FavoriteRequest toggles a membership's favorite flag
type FavoriteRequest struct {
	Favorite *bool `json:"favorite" binding:"required"`
}

// FavoriteCommunity marks or unmarks a joined community as a favorite
func (h *Handlers) FavoriteCommunity(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	community, ok := h.communityByName(c)
	if !ok {
		return
	}

	var req FavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondValidationError(c, "favorite", "favorite is required")
		return
	}

	result := h.db.Model(&models.Membership{}).
		Where("user_id = ? AND community_id = ?", userID, community.ID).
		Update("favorite", *req.Favorite)
	if result.Error != nil {
		logger.ErrorWithFields("favorite update failed", result.Error)
		util.RespondInternalError(c)
		return
	}
	if result.RowsAffected == 0 {
		util.RespondNotFound(c, "membership")
		return
	}

	c.JSON(http.StatusOK, gin.H{"favorite": *req.Favorite})
}

// GetMyCommunities lists the caller's memberships, favorites first
func (h *Handlers) GetMyCommunities(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var memberships []models.Membership
	err := h.db.Preload("Community").
		Where("user_id = ?", userID).
		Order("favorite DESC, created_at ASC").
		Find(&memberships).Error
	if err != nil {
		logger.ErrorWithFields("membership listing failed", err)
		util.RespondInternalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"memberships": memberships})
}
