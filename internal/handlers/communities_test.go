package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadline/backend/internal/models"
)

func TestCreateCommunityAndDuplicateName(t *testing.T) {
	env := newTestEnv(t)
	token, user := env.registerUser(t, "alice")

	community := env.createCommunity(t, token, "golang")
	assert.Equal(t, "golang", community.Name)
	assert.Equal(t, user.ID, community.CreatedByID)
	assert.Equal(t, 1, community.MembersCount)

	// creator joined as moderator
	var membership models.Membership
	require.NoError(t, env.db.Where("user_id = ? AND community_id = ?", user.ID, community.ID).
		First(&membership).Error)
	assert.Equal(t, "moderator", membership.Role)

	w := env.do(t, http.MethodPost, "/api/v1/communities", token, gin.H{"name": "GOLANG"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetCommunityByName(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice")
	env.createCommunity(t, token, "golang")

	w := env.do(t, http.MethodGet, "/api/v1/communities/golang", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/communities/GoLang", "", nil)
	assert.Equal(t, http.StatusOK, w.Code, "lookup is case-insensitive")

	w = env.do(t, http.MethodGet, "/api/v1/communities/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJoinLeaveMembershipLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.registerUser(t, "owner")
	token, _ := env.registerUser(t, "member")
	community := env.createCommunity(t, ownerToken, "golang")

	w := env.do(t, http.MethodPost, "/api/v1/communities/golang/join", token, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	// joining twice conflicts
	w = env.do(t, http.MethodPost, "/api/v1/communities/golang/join", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	var reloaded models.Community
	require.NoError(t, env.db.First(&reloaded, "id = ?", community.ID).Error)
	assert.Equal(t, 2, reloaded.MembersCount)

	w = env.do(t, http.MethodDelete, "/api/v1/communities/golang/join", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, env.db.First(&reloaded, "id = ?", community.ID).Error)
	assert.Equal(t, 1, reloaded.MembersCount)

	// leaving without a membership conflicts, like a redundant unsave
	w = env.do(t, http.MethodDelete, "/api/v1/communities/golang/join", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// the counter is untouched by the rejected leave
	require.NoError(t, env.db.First(&reloaded, "id = ?", community.ID).Error)
	assert.Equal(t, 1, reloaded.MembersCount)

	w = env.do(t, http.MethodPost, "/api/v1/communities/missing/join", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFavoriteCommunity(t *testing.T) {
	env := newTestEnv(t)
	ownerToken, _ := env.registerUser(t, "owner")
	token, _ := env.registerUser(t, "member")
	env.createCommunity(t, ownerToken, "golang")
	env.createCommunity(t, ownerToken, "rust")

	w := env.do(t, http.MethodPost, "/api/v1/communities/golang/join", token, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/communities/rust/join", token, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/communities/rust/favorite", token, gin.H{"favorite": true})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/communities/rust/favorite", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// creators hold a membership from the start
	w = env.do(t, http.MethodPost, "/api/v1/communities/golang/favorite", ownerToken, gin.H{"favorite": true})
	assert.Equal(t, http.StatusOK, w.Code)

	// favorites sort first in the membership listing
	w = env.do(t, http.MethodGet, "/api/v1/me/communities", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Memberships []models.Membership `json:"memberships"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Memberships, 2)
	assert.Equal(t, "rust", resp.Memberships[0].Community.Name)
	assert.True(t, resp.Memberships[0].Favorite)
}

func TestListCommunitiesSearch(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice")
	env.createCommunity(t, token, "golang")
	env.createCommunity(t, token, "gophers")
	env.createCommunity(t, token, "rustaceans")

	w := env.do(t, http.MethodGet, "/api/v1/communities?q=go", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Communities []models.Community `json:"communities"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Communities, 2)
}

func TestCommunityPostsSorted(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.registerUser(t, "alice")
	voterToken, _ := env.registerUser(t, "bob")
	community := env.createCommunity(t, token, "golang")

	env.createPost(t, token, "unloved", &community.ID)
	loved := env.createPost(t, token, "loved", &community.ID)

	w := env.do(t, http.MethodPost, "/api/v1/posts/"+loved.ID+"/vote", voterToken, gin.H{"value": 1})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/communities/golang/posts?sort=best", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Posts []PostView `json:"posts"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Posts, 2)
	assert.Equal(t, loved.ID, resp.Posts[0].ID)
}
