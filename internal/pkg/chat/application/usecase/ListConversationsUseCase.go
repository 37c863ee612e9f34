package usecase

import (
	"context"
	"fmt"

	cacheport "social-chat/internal/infrastructure/cache/port"
	chat "social-chat/internal/pkg/chat/domain"
	repository "social-chat/internal/pkg/chat/persistence/repository/port"
)

// PresenceKeyPrefix namespaces presence entries in the cache. A key exists
// while its user has at least one open socket; TTL covers crashed processes
// that never deleted it.
const PresenceKeyPrefix = "presence:"

// ConversationSummary is one sidebar row: the conversation plus the peer's
// identity and live presence.
type ConversationSummary struct {
	chat.Conversation
	PeerID     string `json:"peerId"`
	PeerStatus string `json:"peerStatus"` // "online" or "offline"
}

// ListConversationsUseCase returns the requester's conversations, most
// recently active first, decorated with peer presence from the cache.
// A nil cache degrades to reporting everyone offline.
type ListConversationsUseCase struct {
	Directory repository.ConversationDirectory
	Cache     cacheport.Cache
}

func NewListConversationsUseCase(directory repository.ConversationDirectory, cache cacheport.Cache) *ListConversationsUseCase {
	return &ListConversationsUseCase{Directory: directory, Cache: cache}
}

func (uc *ListConversationsUseCase) Execute(ctx context.Context, requesterID string) ([]ConversationSummary, error) {
	convs, err := uc.Directory.ListForUser(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		peer := conv.Peer(requesterID)
		out = append(out, ConversationSummary{
			Conversation: conv,
			PeerID:       peer,
			PeerStatus:   uc.presence(ctx, peer),
		})
	}
	return out, nil
}

func (uc *ListConversationsUseCase) presence(ctx context.Context, userID string) string {
	if uc.Cache == nil || userID == "" {
		return "offline"
	}
	// Presence is cosmetic; cache errors read as offline rather than failing
	// the listing.
	if _, err := uc.Cache.Get(ctx, PresenceKeyPrefix+userID); err == nil {
		return "online"
	}
	return "offline"
}
