package service

import (
	"item_recovery/internal/config"
	"item_recovery/internal/repository"
	"item_recovery/pkg/logger"
)

type Services struct {
	Conversation ConversationService
	Message      MessageService
	RateLimit    RateLimitService
	Listing      ListingService
	Reputation   ReputationService
	Sweeper      *Sweeper
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	listing := NewListingServiceClient(cfg.Services.ListingURL, cfg.Services.Timeout)
	reputation := NewReputationServiceClient(cfg.Services.ReputationURL, cfg.Services.Timeout, log)

	conversations := NewConversationService(repos.Conversation, listing, reputation, cfg.Chat.AutoCloseWindow, log)

	return &Services{
		Conversation: conversations,
		Message:      NewMessageService(repos.Message, repos.Conversation, cfg.Chat, log),
		RateLimit:    NewRateLimitService(repos.RateLimit, log),
		Listing:      listing,
		Reputation:   reputation,
		Sweeper:      NewSweeper(repos.Conversation, conversations, cfg.Chat.SweepInterval, log),
	}
}
