package feeds

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/threadline/backend/internal/cache"
	"github.com/threadline/backend/internal/logger"
	"github.com/threadline/backend/internal/middleware"
	"github.com/threadline/backend/internal/models"
	"gorm.io/gorm"
)

// RecencyWindow bounds which votes count toward the popular ranking
const RecencyWindow = 24 * time.Hour

// CacheTTL is how long a computed popular ordering is served from Redis
const CacheTTL = 60 * time.Second

const popularCacheKey = "feeds:popular:ids"

// PopularIDs ranks every community post by the sum of vote values cast within
// the recency window, most recent activity first. The whole candidate set is
// ordered in memory before any pagination; ties fall back to newest post
// first so the ordering stays deterministic between calls.
func PopularIDs(db *gorm.DB, now time.Time) ([]string, error) {
	type candidate struct {
		ID        string
		CreatedAt time.Time
	}
	var posts []candidate
	err := db.Model(&models.Post{}).
		Select("id", "created_at").
		Where("community_id IS NOT NULL").
		Scan(&posts).Error
	if err != nil {
		return nil, err
	}

	type voteSum struct {
		PostID string
		Total  int
	}
	var sums []voteSum
	err = db.Model(&models.PostVote{}).
		Select("post_id, COALESCE(SUM(value), 0) AS total").
		Where("created_at > ?", now.Add(-RecencyWindow)).
		Group("post_id").
		Scan(&sums).Error
	if err != nil {
		return nil, err
	}

	recent := make(map[string]int, len(sums))
	for _, s := range sums {
		recent[s.PostID] = s.Total
	}

	sort.SliceStable(posts, func(i, j int) bool {
		ri, rj := recent[posts[i].ID], recent[posts[j].ID]
		if ri != rj {
			return ri > rj
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids, nil
}

// PopularIDsCached serves the popular ordering through Redis when a client is
// available, recomputing on miss. Cache failures degrade to a direct compute.
func PopularIDsCached(ctx context.Context, db *gorm.DB, rc *cache.RedisClient) ([]string, error) {
	if rc != nil {
		if raw, err := rc.Get(ctx, popularCacheKey); err == nil {
			var ids []string
			if jsonErr := json.Unmarshal([]byte(raw), &ids); jsonErr == nil {
				middleware.RecordCacheHit("popular_feed")
				return ids, nil
			}
		} else if !cache.IsNil(err) {
			logger.WarnWithFields("popular feed cache read failed", err)
		}
		middleware.RecordCacheMiss("popular_feed")
	}

	ids, err := PopularIDs(db, time.Now())
	if err != nil {
		return nil, err
	}

	if rc != nil {
		if raw, jsonErr := json.Marshal(ids); jsonErr == nil {
			if err := rc.SetEx(ctx, popularCacheKey, string(raw), CacheTTL); err != nil {
				logger.WarnWithFields("popular feed cache write failed", err)
			}
		}
	}
	return ids, nil
}

// Page slices an ordered id list for one page. Pages past the end come back
// empty rather than erroring.
func Page(ids []string, page, limit int) []string {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(ids) {
		return []string{}
	}
	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}
	return ids[start:end]
}
