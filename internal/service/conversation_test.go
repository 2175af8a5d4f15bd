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

func setupConversationService(t *testing.T) (ConversationService, *fakeConversationRepo, *fakeReputation) {
	t.Helper()
	repo := newFakeConversationRepo()
	listing := &fakeListing{known: map[string]bool{"item-123": true}}
	reputation := &fakeReputation{}
	svc := NewConversationService(repo, listing, reputation, 7*24*time.Hour, testLogger)
	return svc, repo, reputation
}

func TestCreateConversation(t *testing.T) {
	svc, _, _ := setupConversationService(t)

	alice, bob := uuid.New(), uuid.New()
	conv, created, err := svc.Create(context.Background(), "item-123", alice, bob)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.ConversationStatusActive, conv.Status)
	require.Len(t, conv.Participants, 2)
	assert.NotNil(t, conv.ActiveParticipant(alice))
	assert.NotNil(t, conv.ActiveParticipant(bob))
}

func TestCreateConversationIdempotentPerPair(t *testing.T) {
	svc, _, _ := setupConversationService(t)

	alice, bob := uuid.New(), uuid.New()
	first, created, err := svc.Create(context.Background(), "item-123", alice, bob)
	require.NoError(t, err)
	require.True(t, created)

	// Та же пара в обратном порядке получает существующий разговор
	second, created, err := svc.Create(context.Background(), "item-123", bob, alice)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateConversationValidation(t *testing.T) {
	svc, _, _ := setupConversationService(t)

	alice := uuid.New()

	_, _, err := svc.Create(context.Background(), "   ", alice, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	// Разговор с самим собой запрещён
	_, _, err = svc.Create(context.Background(), "item-123", alice, alice)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestCreateConversationUnknownListing(t *testing.T) {
	svc, _, _ := setupConversationService(t)

	_, _, err := svc.Create(context.Background(), "no-such-item", uuid.New(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetForPrincipal(t *testing.T) {
	svc, repo, _ := setupConversationService(t)

	alice, bob := uuid.New(), uuid.New()
	conv := activeConversation(alice, bob)
	repo.put(conv)

	got, err := svc.GetForPrincipal(context.Background(), conv.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	// Неучастник и несуществующий разговор дают одинаковый отказ
	_, err = svc.GetForPrincipal(context.Background(), conv.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)

	_, err = svc.GetForPrincipal(context.Background(), uuid.New(), alice)
	assert.ErrorIs(t, err, apperrors.ErrNotAuthorized)
}

func TestListValidatesStatus(t *testing.T) {
	svc, repo, _ := setupConversationService(t)

	alice, bob := uuid.New(), uuid.New()
	repo.put(activeConversation(alice, bob))

	conversations, err := svc.List(context.Background(), alice, domain.ConversationStatusActive)
	require.NoError(t, err)
	assert.Len(t, conversations, 1)

	_, err = svc.List(context.Background(), alice, "pending")
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestCloseConversation(t *testing.T) {
	svc, repo, reputation := setupConversationService(t)

	alice, bob := uuid.New(), uuid.New()
	conv := activeConversation(alice, bob)
	repo.put(conv)

	closed, err := svc.Close(context.Background(), conv.ID, &alice)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationStatusClosed, closed.Status)
	assert.True(t, closed.IsResolved)
	require.NotNil(t, closed.ResolvedBy)
	assert.Equal(t, alice, *closed.ResolvedBy)
	assert.Equal(t, 1, reputation.count())
}

func TestCloseConversationIdempotent(t *testing.T) {
	svc, repo, reputation := setupConversationService(t)

	alice, bob := uuid.New(), uuid.New()
	conv := activeConversation(alice, bob)
	repo.put(conv)

	_, err := svc.Close(context.Background(), conv.ID, &alice)
	require.NoError(t, err)

	// Повторное закрытие не трогает хранилище и не шлёт уведомлений
	again, err := svc.Close(context.Background(), conv.ID, &bob)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationStatusClosed, again.Status)
	assert.Equal(t, alice, *again.ResolvedBy)
	assert.Equal(t, 1, reputation.count())
	assert.Len(t, repo.closedIDs, 1)
}

func TestRemoveParticipantSoft(t *testing.T) {
	svc, repo, _ := setupConversationService(t)

	alice, bob := uuid.New(), uuid.New()
	conv := activeConversation(alice, bob)
	repo.put(conv)

	require.NoError(t, svc.RemoveParticipant(context.Background(), conv.ID, bob))

	got, err := repo.GetByID(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ActiveParticipant(bob))
	// Запись об участии сохраняется ради истории
	assert.Len(t, got.Participants, 2)

	require.NoError(t, svc.AddParticipant(context.Background(), conv.ID, bob))
	got, err = repo.GetByID(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.ActiveParticipant(bob))
}
