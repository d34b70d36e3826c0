package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadline/backend/internal/models"
)

type feedResponse struct {
	Feed  string     `json:"feed"`
	Posts []PostView `json:"posts"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}

func (e *testEnv) getFeed(t *testing.T, path, token string) feedResponse {
	w := e.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp feedResponse
	decode(t, w, &resp)
	return resp
}

func TestHomeFeedOnlyJoinedCommunities(t *testing.T) {
	env := newTestEnv(t)
	authorToken, _ := env.registerUser(t, "author")
	readerToken, _ := env.registerUser(t, "reader")

	joined := env.createCommunity(t, authorToken, "joined")
	ignored := env.createCommunity(t, authorToken, "ignored")

	inside := env.createPost(t, authorToken, "inside", &joined.ID)
	outside := env.createPost(t, authorToken, "outside", &ignored.ID)
	homeless := env.createPost(t, authorToken, "homeless", nil)

	w := env.do(t, http.MethodPost, "/api/v1/communities/joined/join", readerToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	resp := env.getFeed(t, "/api/v1/feeds/home", readerToken)
	require.Len(t, resp.Posts, 1)
	assert.Equal(t, inside.ID, resp.Posts[0].ID)

	// anonymous home is every community post, profile posts excluded
	resp = env.getFeed(t, "/api/v1/feeds/home", "")
	ids := postIDs(resp.Posts)
	assert.Contains(t, ids, inside.ID)
	assert.Contains(t, ids, outside.ID)
	assert.NotContains(t, ids, homeless.ID)
}

func TestHomeFlagRestrictsNamedFeeds(t *testing.T) {
	env := newTestEnv(t)
	authorToken, _ := env.registerUser(t, "author")
	readerToken, _ := env.registerUser(t, "reader")

	community := env.createCommunity(t, authorToken, "strangers")
	post := env.createPost(t, authorToken, "in community", &community.ID)

	paths := []string{
		"/api/v1/feeds/best?home=true",
		"/api/v1/feeds/new?home=true",
		"/api/v1/feeds/top?home=true",
		"/api/v1/feeds/popular?home=true",
	}

	// a reader with no memberships gets empty pages under home=true
	for _, path := range paths {
		resp := env.getFeed(t, path, readerToken)
		assert.Empty(t, resp.Posts, path)
	}

	// joining the community brings the post into scope
	w := env.do(t, http.MethodPost, "/api/v1/communities/strangers/join", readerToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	for _, path := range paths {
		resp := env.getFeed(t, path, readerToken)
		require.Len(t, resp.Posts, 1, path)
		assert.Equal(t, post.ID, resp.Posts[0].ID)
	}

	// without the flag the feed stays global
	resp := env.getFeed(t, "/api/v1/feeds/best", "")
	assert.Len(t, resp.Posts, 1)
}

func TestHiddenPostsLeaveFeeds(t *testing.T) {
	env := newTestEnv(t)
	authorToken, _ := env.registerUser(t, "author")
	readerToken, _ := env.registerUser(t, "reader")

	community := env.createCommunity(t, authorToken, "general")
	keep := env.createPost(t, authorToken, "keep", &community.ID)
	hide := env.createPost(t, authorToken, "hide", &community.ID)

	w := env.do(t, http.MethodPost, "/api/v1/posts/"+hide.ID+"/hide", readerToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	resp := env.getFeed(t, "/api/v1/feeds/new", readerToken)
	ids := postIDs(resp.Posts)
	assert.Contains(t, ids, keep.ID)
	assert.NotContains(t, ids, hide.ID)

	// anonymous viewers still see everything
	resp = env.getFeed(t, "/api/v1/feeds/new", "")
	assert.Contains(t, postIDs(resp.Posts), hide.ID)
}

func TestFeedOrderingsDiffer(t *testing.T) {
	env := newTestEnv(t)
	authorToken, _ := env.registerUser(t, "author")
	voterToken, _ := env.registerUser(t, "voter")

	oldHigh := env.createPost(t, authorToken, "old high score", nil)
	newLow := env.createPost(t, authorToken, "new low score", nil)

	// push the older post's creation time back so new/best disagree
	require.NoError(t, env.db.Model(&models.Post{}).Where("id = ?", oldHigh.ID).
		UpdateColumn("created_at", time.Now().Add(-2*time.Hour)).Error)

	w := env.do(t, http.MethodPost, "/api/v1/posts/"+oldHigh.ID+"/vote", voterToken, gin.H{"value": 1})
	require.Equal(t, http.StatusOK, w.Code)

	newFeed := env.getFeed(t, "/api/v1/feeds/new", "")
	require.Len(t, newFeed.Posts, 2)
	assert.Equal(t, newLow.ID, newFeed.Posts[0].ID)

	bestFeed := env.getFeed(t, "/api/v1/feeds/best", "")
	require.Len(t, bestFeed.Posts, 2)
	assert.Equal(t, oldHigh.ID, bestFeed.Posts[0].ID)

	topFeed := env.getFeed(t, "/api/v1/feeds/top", "")
	require.Len(t, topFeed.Posts, 2)
	assert.Equal(t, oldHigh.ID, topFeed.Posts[0].ID)
}

func TestPopularFeedRanksByRecentActivity(t *testing.T) {
	env := newTestEnv(t)
	authorToken, _ := env.registerUser(t, "author")
	community := env.createCommunity(t, authorToken, "general")

	quiet := env.createPost(t, authorToken, "quiet", &community.ID)
	busy := env.createPost(t, authorToken, "busy", &community.ID)
	env.createPost(t, authorToken, "homeless", nil)

	for _, name := range []string{"u1", "u2", "u3"} {
		token, _ := env.registerUser(t, name)
		w := env.do(t, http.MethodPost, "/api/v1/posts/"+busy.ID+"/vote", token, gin.H{"value": 1})
		require.Equal(t, http.StatusOK, w.Code)
	}

	resp := env.getFeed(t, "/api/v1/feeds/popular", "")
	require.Len(t, resp.Posts, 2, "profile posts stay out of popular")
	assert.Equal(t, busy.ID, resp.Posts[0].ID)
	assert.Equal(t, quiet.ID, resp.Posts[1].ID)
}

func TestPopularFeedPaginationIsDisjoint(t *testing.T) {
	env := newTestEnv(t)
	authorToken, _ := env.registerUser(t, "author")
	community := env.createCommunity(t, authorToken, "general")

	for i := 0; i < 5; i++ {
		env.createPost(t, authorToken, "post", &community.ID)
	}

	page1 := env.getFeed(t, "/api/v1/feeds/popular?page=1&limit=2", "")
	page2 := env.getFeed(t, "/api/v1/feeds/popular?page=2&limit=2", "")
	page3 := env.getFeed(t, "/api/v1/feeds/popular?page=3&limit=2", "")
	page4 := env.getFeed(t, "/api/v1/feeds/popular?page=4&limit=2", "")

	seen := map[string]bool{}
	total := 0
	for _, page := range []feedResponse{page1, page2, page3} {
		for _, p := range page.Posts {
			assert.False(t, seen[p.ID], "post appeared on two pages")
			seen[p.ID] = true
			total++
		}
	}
	assert.Equal(t, 5, total)
	assert.Empty(t, page4.Posts)
}

func postIDs(posts []PostView) []string {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}
