package notify

import (
	"context"
	"errors"
	"fmt"

	"webping/internal/models"
	"webping/internal/store"
)

// TopicStore is the read side of the store used to resolve a topic.
type TopicStore interface {
	ResolveTopic(ctx context.Context, name string) (models.User, []models.PushSubscription, error)
}

// Target is everything a send needs to know about the topic's owner.
type Target struct {
	Topic         string
	Owner         models.User
	Subscriptions []models.PushSubscription
}

type Resolver struct {
	store TopicStore
}

func NewResolver(s TopicStore) *Resolver {
	return &Resolver{store: s}
}

// Resolve returns the owner of topic and the owner's current subscriptions.
// An owner without subscriptions resolves to an empty, non-nil list.
func (r *Resolver) Resolve(ctx context.Context, topic string) (Target, error) {
	owner, subs, err := r.store.ResolveTopic(ctx, topic)
	if errors.Is(err, store.ErrNotFound) {
		return Target{}, fmt.Errorf("%w: %w", ErrTopicNotFound, err)
	}
	if err != nil {
		return Target{}, fmt.Errorf("failed to resolve topic %q: %w", topic, err)
	}

	if subs == nil {
		subs = []models.PushSubscription{}
	}
	return Target{Topic: topic, Owner: owner, Subscriptions: subs}, nil
}
