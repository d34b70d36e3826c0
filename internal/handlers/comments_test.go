package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/threads"
)

func (e *testEnv) createComment(t *testing.T, token, postID, body string, parentID *string) models.Comment {
	payload := gin.H{"body": body}
	if parentID != nil {
		payload["parent_id"] = *parentID
	}
	w := e.do(t, http.MethodPost, "/api/v1/posts/"+postID+"/comments", token, payload)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var comment models.Comment
	decode(t, w, &comment)
	return comment
}

func TestCreateCommentIncrementsCounter(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice")
	post := env.createPost(t, token, "discuss", nil)

	env.createComment(t, token, post.ID, "first", nil)
	env.createComment(t, token, post.ID, "second", nil)

	var reloaded models.Post
	require.NoError(t, env.db.First(&reloaded, "id = ?", post.ID).Error)
	assert.Equal(t, 2, reloaded.CommentCount)
}

func TestCreateCommentValidation(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice")
	post := env.createPost(t, token, "discuss", nil)
	other := env.createPost(t, token, "other", nil)

	w := env.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/comments", token, gin.H{"body": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/posts/missing/comments", token, gin.H{"body": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/comments", token, gin.H{
		"body": "hi", "parent_id": "missing",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// a parent on another post is rejected
	parent := env.createComment(t, token, other.ID, "elsewhere", nil)
	w = env.do(t, http.MethodPost, "/api/v1/posts/"+post.ID+"/comments", token, gin.H{
		"body": "hi", "parent_id": parent.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommentThreadAssembly(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice")
	post := env.createPost(t, token, "threaded", nil)

	top := env.createComment(t, token, post.ID, "top level", nil)
	reply := env.createComment(t, token, post.ID, "reply", &top.ID)
	env.createComment(t, token, post.ID, "deep reply", &reply.ID)
	env.createComment(t, token, post.ID, "another top", nil)

	assert.Equal(t, 0, top.Depth)
	assert.Equal(t, 1, reply.Depth)

	w := env.do(t, http.MethodGet, "/api/v1/posts/"+post.ID+"/comments?sort=old", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Comments []*threads.Node `json:"comments"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Comments, 2)
	assert.Equal(t, "top level", resp.Comments[0].Body)
	require.Len(t, resp.Comments[0].Replies, 1)
	require.Len(t, resp.Comments[0].Replies[0].Replies, 1)
	assert.Equal(t, "deep reply", resp.Comments[0].Replies[0].Replies[0].Body)
	assert.Empty(t, resp.Comments[1].Replies)
}

func TestCommentThreadBestOrder(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice")
	voterToken, _ := env.registerUser(t, "bob")
	post := env.createPost(t, token, "ranked thread", nil)

	low := env.createComment(t, token, post.ID, "low", nil)
	high := env.createComment(t, token, post.ID, "high", nil)

	w := env.do(t, http.MethodPost, "/api/v1/comments/"+high.ID+"/vote", voterToken, gin.H{"value": 1})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/comments/"+low.ID+"/vote", voterToken, gin.H{"value": -1})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/posts/"+post.ID+"/comments?sort=best", voterToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Comments []*threads.Node `json:"comments"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Comments, 2)
	assert.Equal(t, "high", resp.Comments[0].Body)
	assert.Equal(t, 1, resp.Comments[0].Score)
	assert.Equal(t, 1, resp.Comments[0].Upvotes)
	assert.Equal(t, 1, resp.Comments[0].UserVote)
	assert.Equal(t, "low", resp.Comments[1].Body)
	assert.Equal(t, -1, resp.Comments[1].UserVote)
}

func TestVoteCommentErrors(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice")
	post := env.createPost(t, token, "a post", nil)
	comment := env.createComment(t, token, post.ID, "hi", nil)

	w := env.do(t, http.MethodPost, "/api/v1/comments/"+comment.ID+"/vote", token, gin.H{"value": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/comments/missing/vote", token, gin.H{"value": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
