package handlers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadline/backend/internal/models"
)

func TestListPostsPaginationStableOnEqualTimestamps(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice")

	for i := 0; i < 5; i++ {
		env.createPost(t, token, "same moment", nil)
	}
	shared := time.Now().Add(-time.Hour)
	require.NoError(t, env.db.Model(&models.Post{}).Where("1 = 1").
		UpdateColumn("created_at", shared).Error)

	for _, sort := range []string{"new", "best", "top"} {
		seen := map[string]bool{}
		total := 0
		for page := 1; page <= 3; page++ {
			path := fmt.Sprintf("/api/v1/posts?sort=%s&page=%d&limit=2", sort, page)
			w := env.do(t, http.MethodGet, path, "", nil)
			require.Equal(t, http.StatusOK, w.Code)

			var resp struct {
				Posts []PostView `json:"posts"`
			}
			decode(t, w, &resp)
			for _, p := range resp.Posts {
				assert.False(t, seen[p.ID], "post repeated across pages under sort=%s", sort)
				seen[p.ID] = true
				total++
			}
		}
		assert.Equal(t, 5, total, "sort=%s", sort)
	}
}

func TestCreatePostRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/posts", "", gin.H{"title": "hello"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreatePostValidation(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice")

	w := env.do(t, http.MethodPost, "/api/v1/posts", token, gin.H{"title": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/posts", token, gin.H{"title": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/posts", token, gin.H{
		"title": "ok", "community_id": "no-such-community",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateAndGetPost(t *testing.T) {
	env := newTestEnv(t)
	token, user := env.registerUser(t, "alice")
	community := env.createCommunity(t, token, "golang")

	post := env.createPost(t, token, "first post", &community.ID)
	assert.Equal(t, user.ID, post.AuthorID)
	assert.Equal(t, 0, post.Score)
	assert.Equal(t, 0, post.CommentCount)

	w := env.do(t, http.MethodGet, "/api/v1/posts/"+post.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Post     PostView      `json:"post"`
		Comments []interface{} `json:"comments"`
	}
	decode(t, w, &resp)
	assert.Equal(t, post.ID, resp.Post.ID)
	assert.Equal(t, "first post", resp.Post.Title)
	assert.Empty(t, resp.Comments)

	w = env.do(t, http.MethodGet, "/api/v1/posts/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVotePostArithmetic(t *testing.T) {
	env := newTestEnv(t)
	authorToken, author := env.registerUser(t, "author")
	tokenA, _ := env.registerUser(t, "alice")
	tokenB, _ := env.registerUser(t, "bob")

	post := env.createPost(t, authorToken, "vote on me", nil)

	vote := func(token string, value int) map[string]interface{} {
		w := env.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/vote", token, gin.H{"value": value})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp map[string]interface{}
		decode(t, w, &resp)
		return resp
	}

	resp := vote(tokenA, 1)
	assert.EqualValues(t, 1, resp["score"])

	resp = vote(tokenB, 1)
	assert.EqualValues(t, 2, resp["score"])

	// repeating the same vote changes nothing
	resp = vote(tokenB, 1)
	assert.EqualValues(t, 2, resp["score"])

	resp = vote(tokenB, 0)
	assert.EqualValues(t, 1, resp["score"])

	resp = vote(tokenA, -1)
	assert.EqualValues(t, -1, resp["score"])

	// author karma tracks the score of their only post
	w := env.do(t, http.MethodGet, "/api/v1/users/author", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile struct {
		User models.User `json:"user"`
	}
	decode(t, w, &profile)
	assert.Equal(t, author.ID, profile.User.ID)
	assert.Equal(t, -1, profile.User.Karma)
}

func TestVotePostErrors(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice")
	post := env.createPost(t, token, "a post", nil)

	w := env.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/vote", token, gin.H{"value": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/vote", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/posts/missing/vote", token, gin.H{"value": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/vote", "", gin.H{"value": 1})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserVoteAnnotation(t *testing.T) {
	env := newTestEnv(t)
	tokenA, _ := env.registerUser(t, "alice")
	tokenB, _ := env.registerUser(t, "bob")
	post := env.createPost(t, tokenA, "annotated", nil)

	w := env.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/vote", tokenB, gin.H{"value": -1})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Post PostView `json:"post"`
	}

	w = env.do(t, http.MethodGet, "/api/v1/posts/"+post.ID, tokenB, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, -1, resp.Post.UserVote)

	// a different viewer sees the score but no personal vote
	w = env.do(t, http.MethodGet, "/api/v1/posts/"+post.ID, tokenA, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, -1, resp.Post.Score)
	assert.Equal(t, 0, resp.Post.UserVote)
}

func TestSaveAndUnsaveConflicts(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice")
	post := env.createPost(t, token, "bookmark me", nil)

	w := env.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/save", token, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/save", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/me/saved", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var saved struct {
		Posts []PostView `json:"posts"`
	}
	decode(t, w, &saved)
	require.Len(t, saved.Posts, 1)
	assert.True(t, saved.Posts[0].IsSaved)

	w = env.do(t, http.MethodDelete, "/api/v1/posts/"+post.ID+"/save", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/posts/"+post.ID+"/save", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHideAndUnhideConflicts(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice")
	post := env.createPost(t, token, "hide me", nil)

	w := env.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/hide", token, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/hide", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/posts/"+post.ID+"/hide", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/posts/"+post.ID+"/hide", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/posts/missing/hide", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPostsFilters(t *testing.T) {
	env := newTestEnv(t)
	tokenA, _ := env.registerUser(t, "alice")
	tokenB, _ := env.registerUser(t, "bob")
	community := env.createCommunity(t, tokenA, "golang")

	env.createPost(t, tokenA, "alice community post", &community.ID)
	env.createPost(t, tokenA, "alice profile post", nil)
	env.createPost(t, tokenB, "bob post", nil)

	var resp struct {
		Posts []PostView `json:"posts"`
	}

	w := env.do(t, http.MethodGet, "/api/v1/posts?community_id="+community.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	require.Len(t, resp.Posts, 1)
	assert.Equal(t, "alice community post", resp.Posts[0].Title)

	w = env.do(t, http.MethodGet, "/api/v1/posts?author=alice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Len(t, resp.Posts, 2)
}

func TestListPostsRelationshipFilters(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice")
	otherToken, _ := env.registerUser(t, "bob")

	saved := env.createPost(t, otherToken, "to save", nil)
	hidden := env.createPost(t, otherToken, "to hide", nil)
	upvoted := env.createPost(t, otherToken, "to upvote", nil)
	env.createPost(t, otherToken, "untouched", nil)

	w := env.do(t, http.MethodPost, "/api/v1/posts/"+saved.ID+"/save", token, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/posts/"+hidden.ID+"/hide", token, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/posts/"+upvoted.ID+"/vote", token, gin.H{"value": 1})
	require.Equal(t, http.StatusOK, w.Code)

	list := func(query string) []PostView {
		w := env.do(t, http.MethodGet, "/api/v1/posts"+query, token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp struct {
			Posts []PostView `json:"posts"`
		}
		decode(t, w, &resp)
		return resp.Posts
	}

	posts := list("?filter=saved")
	require.Len(t, posts, 1)
	assert.Equal(t, saved.ID, posts[0].ID)

	posts = list("?filter=upvoted")
	require.Len(t, posts, 1)
	assert.Equal(t, upvoted.ID, posts[0].ID)

	posts = list("?filter=downvoted")
	assert.Empty(t, posts)

	// the hidden post only surfaces under its own filter
	posts = list("?filter=hidden")
	require.Len(t, posts, 1)
	assert.Equal(t, hidden.ID, posts[0].ID)

	posts = list("")
	for _, p := range posts {
		assert.NotEqual(t, hidden.ID, p.ID)
	}
	assert.Len(t, posts, 3)

	w = env.do(t, http.MethodGet, "/api/v1/posts?filter=saved", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/posts?filter=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
