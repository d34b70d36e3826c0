package threads

import (
	"sort"
	"time"

	"github.com/threadline/backend/internal/models"
)

// Sort orders accepted for comment threads
const (
	OrderBest          = "best"
	OrderTop           = "top"
	OrderNew           = "new"
	OrderOld           = "old"
	OrderControversial = "controversial"
)

// Node is one comment in an assembled thread. Score is serialized under both
// "score" and "upvotes" since older clients still read the latter.
type Node struct {
	ID        string       `json:"id"`
	PostID    string       `json:"post_id"`
	ParentID  *string      `json:"parent_id,omitempty"`
	AuthorID  string       `json:"author_id"`
	Author    *models.User `json:"author,omitempty"`
	Body      string       `json:"body"`
	Depth     int          `json:"depth"`
	Score     int          `json:"score"`
	Upvotes   int          `json:"upvotes"`
	UserVote  int          `json:"user_vote"`
	CreatedAt time.Time    `json:"created_at"`
	Replies   []*Node      `json:"replies"`
}

// SortFlat orders a flat comment list in place before tree assembly. Sibling
// order in the assembled tree follows this flat order.
func SortFlat(comments []models.Comment, order string) {
	switch order {
	case OrderNew:
		sort.SliceStable(comments, func(i, j int) bool {
			return comments[i].CreatedAt.After(comments[j].CreatedAt)
		})
	case OrderOld:
		sort.SliceStable(comments, func(i, j int) bool {
			return comments[i].CreatedAt.Before(comments[j].CreatedAt)
		})
	case OrderControversial:
		sort.SliceStable(comments, func(i, j int) bool {
			return abs(comments[i].Score) < abs(comments[j].Score)
		})
	default: // best, top
		sort.SliceStable(comments, func(i, j int) bool {
			if comments[i].Score != comments[j].Score {
				return comments[i].Score > comments[j].Score
			}
			return comments[i].CreatedAt.Before(comments[j].CreatedAt)
		})
	}
}

// Build assembles a flat comment list into a thread forest. Comments are
// partitioned strictly by parent id; a nil parent means top-level. Comments
// whose parent is not present in the input are dropped. userVotes maps comment
// id to the caller's vote and may be nil for anonymous requests.
func Build(comments []models.Comment, userVotes map[string]int) []*Node {
	nodes := make(map[string]*Node, len(comments))
	for i := range comments {
		c := &comments[i]
		node := &Node{
			ID:        c.ID,
			PostID:    c.PostID,
			ParentID:  c.ParentID,
			AuthorID:  c.AuthorID,
			Body:      c.Body,
			Depth:     c.Depth,
			Score:     c.Score,
			Upvotes:   c.Score,
			UserVote:  userVotes[c.ID],
			CreatedAt: c.CreatedAt,
			Replies:   []*Node{},
		}
		if c.Author.ID != "" {
			author := c.Author
			node.Author = &author
		}
		nodes[c.ID] = node
	}

	roots := []*Node{}
	for i := range comments {
		c := &comments[i]
		node := nodes[c.ID]
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*c.ParentID]
		if !ok {
			// parent not in this thread, skip the orphan
			continue
		}
		parent.Replies = append(parent.Replies, node)
	}

	return roots
}

// Count reports how many comments ended up in the assembled forest
func Count(roots []*Node) int {
	total := 0
	for _, n := range roots {
		total += 1 + Count(n.Replies)
	}
	return total
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
