package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/threadline/backend/internal/feeds"
	"github.com/threadline/backend/internal/logger"
	"github.com/threadline/backend/internal/middleware"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/util"
	"gorm.io/gorm"
)

// GetHomeFeed returns the newest posts from the caller's joined communities,
// with hidden posts filtered out. Anonymous callers get every post that lives
// in a community.
func (h *Handlers) GetHomeFeed(c *gin.Context) {
	userID := util.GetOptionalUserID(c)
	started := time.Now()
	page, limit := util.ParsePagination(c.Query("page"), c.Query("limit"), defaultPageSize, maxPageSize)

	query := restrictHome(
		h.db.Model(&models.Post{}).
			Preload("Author").Preload("Community").
			Order("created_at DESC"),
		h.db, userID)

	query, err := excludeHidden(query, h.db, userID)
	if err != nil {
		logger.ErrorWithFields("hidden post lookup failed", err)
		util.RespondInternalError(c)
		return
	}

	var posts []models.Post
	if err := query.Offset((page - 1) * limit).Limit(limit).Find(&posts).Error; err != nil {
		logger.ErrorWithFields("home feed query failed", err)
		util.RespondInternalError(c)
		return
	}

	h.respondFeed(c, "home", userID, posts, page, limit, started)
}

// GetPopularFeed returns community posts ranked by vote activity over the
// last day. The full ordering is computed (or read from cache) before the
// requested page is sliced out.
func (h *Handlers) GetPopularFeed(c *gin.Context) {
	userID := util.GetOptionalUserID(c)
	started := time.Now()
	page, limit := util.ParsePagination(c.Query("page"), c.Query("limit"), defaultPageSize, maxPageSize)

	ids, err := feeds.PopularIDsCached(c.Request.Context(), h.db, h.redis)
	if err != nil {
		logger.ErrorWithFields("popular ranking failed", err)
		util.RespondInternalError(c)
		return
	}

	if userID != "" {
		hidden, err := hiddenPostIDs(h.db, userID)
		if err != nil {
			logger.ErrorWithFields("hidden post lookup failed", err)
			util.RespondInternalError(c)
			return
		}
		ids = dropIDs(ids, hidden)
	}

	// popular already excludes profile posts, so the home scope only
	// narrows things for authenticated callers
	if c.Query("home") == "true" && userID != "" {
		joined, err := h.joinedPostIDs(userID)
		if err != nil {
			logger.ErrorWithFields("membership post lookup failed", err)
			util.RespondInternalError(c)
			return
		}
		ids = keepIDs(ids, joined)
	}

	pageIDs := feeds.Page(ids, page, limit)
	posts, err := h.postsByIDs(pageIDs)
	if err != nil {
		logger.ErrorWithFields("popular feed load failed", err)
		util.RespondInternalError(c)
		return
	}

	h.respondFeed(c, "popular", userID, posts, page, limit, started)
}

// GetBestFeed returns posts by cached score, highest first
func (h *Handlers) GetBestFeed(c *gin.Context) {
	h.simpleFeed(c, "best")
}

// GetNewFeed returns posts newest first
func (h *Handlers) GetNewFeed(c *gin.Context) {
	h.simpleFeed(c, "new")
}

// GetTopFeed returns posts by live vote count, highest first
func (h *Handlers) GetTopFeed(c *gin.Context) {
	h.simpleFeed(c, "top")
}

// simpleFeed serves the orderings that map directly onto a SQL sort.
// ?home=true narrows the feed to the caller's home scope.
func (h *Handlers) simpleFeed(c *gin.Context, sort string) {
	userID := util.GetOptionalUserID(c)
	started := time.Now()
	page, limit := util.ParsePagination(c.Query("page"), c.Query("limit"), defaultPageSize, maxPageSize)

	query := orderPosts(h.db.Model(&models.Post{}).Preload("Author").Preload("Community"), sort)
	if c.Query("home") == "true" {
		query = restrictHome(query, h.db, userID)
	}

	query, err := excludeHidden(query, h.db, userID)
	if err != nil {
		logger.ErrorWithFields("hidden post lookup failed", err)
		util.RespondInternalError(c)
		return
	}

	var posts []models.Post
	if err := query.Offset((page - 1) * limit).Limit(limit).Find(&posts).Error; err != nil {
		logger.ErrorWithFields("feed query failed", err)
		util.RespondInternalError(c)
		return
	}

	h.respondFeed(c, sort, userID, posts, page, limit, started)
}

// respondFeed annotates and writes one feed page
func (h *Handlers) respondFeed(c *gin.Context, feed, userID string, posts []models.Post, page, limit int, started time.Time) {
	views, err := buildPostViews(h.db, userID, posts)
	if err != nil {
		logger.ErrorWithFields("post annotation failed", err)
		util.RespondInternalError(c)
		return
	}

	middleware.ObserveFeedGeneration(feed, time.Since(started))
	c.JSON(http.StatusOK, gin.H{
		"feed":  feed,
		"posts": views,
		"page":  page,
		"limit": limit,
	})
}

// postsByIDs loads posts for an ordered id list, preserving that order
func (h *Handlers) postsByIDs(ids []string) ([]models.Post, error) {
	if len(ids) == 0 {
		return []models.Post{}, nil
	}

	var posts []models.Post
	err := h.db.Preload("Author").Preload("Community").
		Where("id IN ?", ids).Find(&posts).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	ordered := make([]models.Post, 0, len(posts))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

// restrictHome narrows a post query to the home scope: the caller's joined
// communities, or every community post for anonymous callers
func restrictHome(query *gorm.DB, db *gorm.DB, userID string) *gorm.DB {
	if userID == "" {
		return query.Where("community_id IS NOT NULL")
	}
	return query.Where("community_id IN (?)",
		db.Model(&models.Membership{}).Select("community_id").Where("user_id = ?", userID))
}

// joinedPostIDs returns the ids of posts in the user's joined communities
func (h *Handlers) joinedPostIDs(userID string) ([]string, error) {
	var ids []string
	err := h.db.Model(&models.Post{}).
		Where("community_id IN (?)",
			h.db.Model(&models.Membership{}).Select("community_id").Where("user_id = ?", userID)).
		Pluck("id", &ids).Error
	return ids, err
}

// excludeHidden filters the caller's hidden posts out of a post query
func excludeHidden(query *gorm.DB, db *gorm.DB, userID string) (*gorm.DB, error) {
	if userID == "" {
		return query, nil
	}
	hidden, err := hiddenPostIDs(db, userID)
	if err != nil {
		return nil, err
	}
	if len(hidden) == 0 {
		return query, nil
	}
	return query.Where("id NOT IN ?", hidden), nil
}

func dropIDs(ids, toDrop []string) []string {
	if len(toDrop) == 0 {
		return ids
	}
	drop := make(map[string]bool, len(toDrop))
	for _, id := range toDrop {
		drop[id] = true
	}
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	return kept
}

func keepIDs(ids, toKeep []string) []string {
	keep := make(map[string]bool, len(toKeep))
	for _, id := range toKeep {
		keep[id] = true
	}
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if keep[id] {
			kept = append(kept, id)
		}
	}
	return kept
}
