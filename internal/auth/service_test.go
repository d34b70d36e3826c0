package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadline/backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupService(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return NewService(db, []byte("test-secret"))
}

func TestRegisterAndLogin(t *testing.T) {
	svc := setupService(t)

	resp, err := svc.Register(RegisterRequest{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "hunter22!",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, "alice", resp.User.DisplayName)

	login, err := svc.Login(LoginRequest{Email: "alice@example.com", Password: "hunter22!"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := setupService(t)

	_, err := svc.Register(RegisterRequest{
		Email: "alice@example.com", Username: "alice", Password: "hunter22!",
	})
	require.NoError(t, err)

	_, err = svc.Register(RegisterRequest{
		Email: "ALICE@example.com", Username: "alice2", Password: "hunter22!",
	})
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = svc.Register(RegisterRequest{
		Email: "other@example.com", Username: "Alice", Password: "hunter22!",
	})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := setupService(t)

	_, err := svc.Register(RegisterRequest{
		Email: "alice@example.com", Username: "alice", Password: "hunter22!",
	})
	require.NoError(t, err)

	_, err = svc.Login(LoginRequest{Email: "alice@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(LoginRequest{Email: "nobody@example.com", Password: "hunter22!"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestValidateToken(t *testing.T) {
	svc := setupService(t)

	resp, err := svc.Register(RegisterRequest{
		Email: "alice@example.com", Username: "alice", Password: "hunter22!",
	})
	require.NoError(t, err)

	user, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)

	_, err = svc.ValidateToken("invalid.jwt.token")
	assert.Error(t, err)

	wrongKey := NewService(svc.db, []byte("other-secret"))
	_, err = wrongKey.ValidateToken(resp.Token)
	assert.Error(t, err)
}
