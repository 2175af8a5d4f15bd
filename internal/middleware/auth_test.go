package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"item_recovery/internal/domain"
	apperrors "item_recovery/pkg/errors"
	"item_recovery/pkg/jwt"
	"item_recovery/pkg/logger"
)

const testSecret = "test-secret"

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		r.users[user.ID] = user
	}
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func setupAuthRouter(t *testing.T) (*gin.Engine, *fakeUserRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := newFakeUserRepo()
	auth := NewAuthMiddleware(testSecret, users, logger.New("error"))

	router := gin.New()
	router.GET("/protected", auth.RequireAuth(), func(c *gin.Context) {
		principalID := c.MustGet("principal_id").(uuid.UUID)
		c.JSON(http.StatusOK, gin.H{"principal_id": principalID})
	})
	return router, users
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	router, _ := setupAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthRejectsBadToken(t *testing.T) {
	router, _ := setupAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthRejectsWrongSecret(t *testing.T) {
	router, _ := setupAuthRouter(t)

	token, err := jwt.GenerateToken(uuid.New(), "a@b.c", "Alice", "another-secret", "identity-service", time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthAutoProvisionsPrincipal(t *testing.T) {
	router, users := setupAuthRouter(t)

	principalID := uuid.New()
	token, err := jwt.GenerateToken(principalID, "alice@example.com", "Alice", testSecret, "identity-service", time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	// Первый валидный токен создаёт локальную проекцию принципала
	created, err := users.GetByID(context.Background(), principalID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", created.Email)
	assert.Equal(t, "Alice", created.DisplayName)
	assert.True(t, created.IsActive)
}

func TestRequireAuthAcceptsQueryToken(t *testing.T) {
	router, _ := setupAuthRouter(t)

	token, err := jwt.GenerateToken(uuid.New(), "bob@example.com", "Bob", testSecret, "identity-service", time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuthRejectsExpiredToken(t *testing.T) {
	router, _ := setupAuthRouter(t)

	token, err := jwt.GenerateToken(uuid.New(), "c@d.e", "Carol", testSecret, "identity-service", -time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
