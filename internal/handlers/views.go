package handlers

import (
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/votes"
	"gorm.io/gorm"
)

// PostView is a post annotated with the caller's relationship to it
type PostView struct {
	models.Post
	UserVote int  `json:"user_vote"`
	IsSaved  bool `json:"is_saved"`
	IsHidden bool `json:"is_hidden"`
}

// buildPostViews annotates posts with the caller's vote, saved and hidden
// state in three batch queries. An empty userID yields zero-value annotations.
func buildPostViews(db *gorm.DB, userID string, posts []models.Post) ([]PostView, error) {
	views := make([]PostView, len(posts))
	ids := make([]string, len(posts))
	for i, p := range posts {
		views[i] = PostView{Post: p}
		ids[i] = p.ID
	}

	if userID == "" || len(posts) == 0 {
		return views, nil
	}

	states, err := votes.PostStates(db, userID, ids)
	if err != nil {
		return nil, err
	}

	saved, err := postIDSet(db, &models.SavedPost{}, userID, ids)
	if err != nil {
		return nil, err
	}
	hidden, err := postIDSet(db, &models.HiddenPost{}, userID, ids)
	if err != nil {
		return nil, err
	}

	for i := range views {
		id := views[i].ID
		views[i].UserVote = states[id]
		views[i].IsSaved = saved[id]
		views[i].IsHidden = hidden[id]
	}
	return views, nil
}

func postIDSet(db *gorm.DB, model interface{}, userID string, postIDs []string) (map[string]bool, error) {
	var ids []string
	err := db.Model(model).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// hiddenPostIDs returns every post id the user has hidden, for feed exclusion
func hiddenPostIDs(db *gorm.DB, userID string) ([]string, error) {
	if userID == "" {
		return nil, nil
	}
	var ids []string
	err := db.Model(&models.HiddenPost{}).
		Where("user_id = ?", userID).
		Pluck("post_id", &ids).Error
	return ids, err
}
