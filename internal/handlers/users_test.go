package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadline/backend/internal/models"
)

func TestUserProfileCounts(t *testing.T) {
	env := newTestEnv(t)
	token, user := env.registerUser(t, "alice")

	post := env.createPost(t, token, "a post", nil)
	env.createComment(t, token, post.ID, "a comment", nil)
	env.createComment(t, token, post.ID, "another", nil)

	w := env.do(t, http.MethodGet, "/api/v1/users/alice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		User         models.User `json:"user"`
		PostCount    int         `json:"post_count"`
		CommentCount int         `json:"comment_count"`
	}
	decode(t, w, &resp)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.Equal(t, 1, resp.PostCount)
	assert.Equal(t, 2, resp.CommentCount)

	w = env.do(t, http.MethodGet, "/api/v1/users/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserPostsAndComments(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, _ := env.registerUser(t, "alice")
	bobToken, _ := env.registerUser(t, "bob")

	alicePost := env.createPost(t, aliceToken, "alice writes", nil)
	env.createPost(t, bobToken, "bob writes", nil)
	env.createComment(t, aliceToken, alicePost.ID, "alice comments", nil)

	var posts struct {
		Posts []PostView `json:"posts"`
	}
	w := env.do(t, http.MethodGet, "/api/v1/users/alice/posts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &posts)
	require.Len(t, posts.Posts, 1)
	assert.Equal(t, alicePost.ID, posts.Posts[0].ID)

	var comments struct {
		Comments []models.Comment `json:"comments"`
	}
	w = env.do(t, http.MethodGet, "/api/v1/users/alice/comments", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &comments)
	require.Len(t, comments.Comments, 1)
	assert.Equal(t, "alice comments", comments.Comments[0].Body)
}
