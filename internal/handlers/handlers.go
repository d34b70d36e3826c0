package handlers

import (
	"github.com/threadline/backend/internal/auth"
	"github.com/threadline/backend/internal/cache"
	"gorm.io/gorm"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	db    *gorm.DB
	auth  *auth.Service
	redis *cache.RedisClient
}

// NewHandlers creates a new handlers instance
func NewHandlers(db *gorm.DB, authService *auth.Service) *Handlers {
	return &Handlers{
		db:   db,
		auth: authService,
	}
}

// SetRedisClient wires the optional Redis client used for feed caching
func (h *Handlers) SetRedisClient(rc *cache.RedisClient) {
	h.redis = rc
}
