package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"item_recovery/internal/domain"
	apperrors "item_recovery/pkg/errors"
)

func setupSweeper(t *testing.T) (*Sweeper, *fakeConversationRepo, *fakeReputation) {
	t.Helper()
	repo := newFakeConversationRepo()
	reputation := &fakeReputation{}
	listing := &fakeListing{known: map[string]bool{"item-123": true}}
	conversations := NewConversationService(repo, listing, reputation, 7*24*time.Hour, testLogger)
	return NewSweeper(repo, conversations, time.Hour, testLogger), repo, reputation
}

func expiredConversation(participants ...uuid.UUID) *domain.Conversation {
	c := activeConversation(participants...)
	c.AutoCloseDeadline = time.Now().Add(-time.Hour)
	return c
}

func TestSweepClosesExpired(t *testing.T) {
	sweeper, repo, _ := setupSweeper(t)

	alice, bob := uuid.New(), uuid.New()
	expired := expiredConversation(alice, bob)
	alive := activeConversation(alice, bob)
	repo.put(expired)
	repo.put(alive)

	sweeper.Sweep(context.Background())

	got, err := repo.GetByID(context.Background(), expired.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationStatusClosed, got.Status)
	assert.True(t, got.IsResolved)
	assert.NotNil(t, got.ResolvedAt)
	// Автозакрытие никому конкретному не приписывается
	assert.Nil(t, got.ResolvedBy)

	got, err = repo.GetByID(context.Background(), alive.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationStatusActive, got.Status)
}

func TestSweepContinuesAfterFailure(t *testing.T) {
	sweeper, repo, _ := setupSweeper(t)

	alice, bob := uuid.New(), uuid.New()
	broken := expiredConversation(alice, bob)
	healthy := expiredConversation(alice, bob)
	repo.put(broken)
	repo.put(healthy)
	repo.closeErr[broken.ID] = apperrors.ErrTransientStore

	sweeper.Sweep(context.Background())

	got, err := repo.GetByID(context.Background(), healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationStatusClosed, got.Status)

	got, err = repo.GetByID(context.Background(), broken.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationStatusActive, got.Status)
}

func TestSweepIsIdempotent(t *testing.T) {
	sweeper, repo, reputation := setupSweeper(t)

	alice, bob := uuid.New(), uuid.New()
	repo.put(expiredConversation(alice, bob))

	sweeper.Sweep(context.Background())
	sweeper.Sweep(context.Background())

	assert.Len(t, repo.closedIDs, 1)
	assert.Equal(t, 1, reputation.count())
}
