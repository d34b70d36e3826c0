package votes

import (
	"errors"
	"fmt"

	"github.com/threadline/backend/internal/models"
	"gorm.io/gorm"
)

// Vote values as stored in the ledger. A cleared vote (None) is expressed by
// deleting the row; zero is never persisted.
const (
	Down = -1
	None = 0
	Up   = 1
)

// ErrInvalidValue is returned when a vote value outside {-1, 0, 1} is applied
var ErrInvalidValue = errors.New("vote value must be -1, 0, or 1")

// Kind selects which ledger table a vote targets
type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
)

// Apply records a user's vote on a post or comment and returns the entity's
// new score. The whole operation runs in one transaction: the ledger row is
// written (or deleted, for a zero value), the cached score is recomputed from
// the ledger, and the author's karma is adjusted by the difference between the
// new and previous value. Applying the same value twice is a no-op.
func Apply(db *gorm.DB, kind Kind, entityID, userID string, value int) (int, error) {
	if value != Down && value != None && value != Up {
		return 0, ErrInvalidValue
	}

	var newScore int
	err := db.Transaction(func(tx *gorm.DB) error {
		switch kind {
		case KindPost:
			return applyPostVote(tx, entityID, userID, value, &newScore)
		case KindComment:
			return applyCommentVote(tx, entityID, userID, value, &newScore)
		default:
			return fmt.Errorf("unknown vote kind %q", kind)
		}
	})
	return newScore, err
}

func applyPostVote(tx *gorm.DB, postID, userID string, value int, newScore *int) error {
	var post models.Post
	if err := tx.First(&post, "id = ?", postID).Error; err != nil {
		return err
	}

	old := None
	var existing models.PostVote
	err := tx.Where("post_id = ? AND user_id = ?", postID, userID).First(&existing).Error
	if err == nil {
		old = existing.Value
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	switch {
	case value == None:
		if old != None {
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
		}
	case old == None:
		vote := models.PostVote{PostID: postID, UserID: userID, Value: value}
		if err := tx.Create(&vote).Error; err != nil {
			return err
		}
	case old != value:
		if err := tx.Model(&existing).Update("value", value).Error; err != nil {
			return err
		}
	}

	score, err := sumPostVotes(tx, postID)
	if err != nil {
		return err
	}
	if err := tx.Model(&models.Post{}).Where("id = ?", postID).
		UpdateColumn("score", score).Error; err != nil {
		return err
	}

	if delta := value - old; delta != 0 {
		if err := adjustKarma(tx, post.AuthorID, delta); err != nil {
			return err
		}
	}

	*newScore = score
	return nil
}

func applyCommentVote(tx *gorm.DB, commentID, userID string, value int, newScore *int) error {
	var comment models.Comment
	if err := tx.First(&comment, "id = ?", commentID).Error; err != nil {
		return err
	}

	old := None
	var existing models.CommentVote
	err := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).First(&existing).Error
	if err == nil {
		old = existing.Value
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	switch {
	case value == None:
		if old != None {
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
		}
	case old == None:
		vote := models.CommentVote{CommentID: commentID, UserID: userID, Value: value}
		if err := tx.Create(&vote).Error; err != nil {
			return err
		}
	case old != value:
		if err := tx.Model(&existing).Update("value", value).Error; err != nil {
			return err
		}
	}

	score, err := sumCommentVotes(tx, commentID)
	if err != nil {
		return err
	}
	if err := tx.Model(&models.Comment{}).Where("id = ?", commentID).
		UpdateColumn("score", score).Error; err != nil {
		return err
	}

	if delta := value - old; delta != 0 {
		if err := adjustKarma(tx, comment.AuthorID, delta); err != nil {
			return err
		}
	}

	*newScore = score
	return nil
}

// sumPostVotes recomputes a post's score from its ledger rows
func sumPostVotes(tx *gorm.DB, postID string) (int, error) {
	var sum int64
	err := tx.Model(&models.PostVote{}).
		Where("post_id = ?", postID).
		Select("COALESCE(SUM(value), 0)").
		Scan(&sum).Error
	return int(sum), err
}

// sumCommentVotes recomputes a comment's score from its ledger rows
func sumCommentVotes(tx *gorm.DB, commentID string) (int, error) {
	var sum int64
	err := tx.Model(&models.CommentVote{}).
		Where("comment_id = ?", commentID).
		Select("COALESCE(SUM(value), 0)").
		Scan(&sum).Error
	return int(sum), err
}

func adjustKarma(tx *gorm.DB, authorID string, delta int) error {
	return tx.Model(&models.User{}).Where("id = ?", authorID).
		UpdateColumn("karma", gorm.Expr("karma + ?", delta)).Error
}

// PostStates returns the caller's current vote value per post id. Posts the
// user never voted on are absent from the map.
func PostStates(db *gorm.DB, userID string, postIDs []string) (map[string]int, error) {
	states := make(map[string]int, len(postIDs))
	if userID == "" || len(postIDs) == 0 {
		return states, nil
	}

	var rows []models.PostVote
	if err := db.Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, v := range rows {
		states[v.PostID] = v.Value
	}
	return states, nil
}

// CommentStates returns the caller's current vote value per comment id
func CommentStates(db *gorm.DB, userID string, commentIDs []string) (map[string]int, error) {
	states := make(map[string]int, len(commentIDs))
	if userID == "" || len(commentIDs) == 0 {
		return states, nil
	}

	var rows []models.CommentVote
	if err := db.Where("user_id = ? AND comment_id IN ?", userID, commentIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, v := range rows {
		states[v.CommentID] = v.Value
	}
	return states, nil
}
