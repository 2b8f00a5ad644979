package services

import (
	"context"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/repositories"
)

// AllowAll grants everyone access. Used in development and when billing is handled upstream.
type AllowAll struct{}

func (AllowAll) IsEntitled(context.Context, string) (bool, error) {
	return true, nil
}

// SubscriptionEntitlements grants access to students holding a subscription valid now.
type SubscriptionEntitlements struct {
	subs repositories.SubscriptionRepository
	now  func() time.Time
}

func NewSubscriptionEntitlements(subs repositories.SubscriptionRepository) *SubscriptionEntitlements {
	return &SubscriptionEntitlements{subs: subs, now: time.Now}
}

func (e *SubscriptionEntitlements) IsEntitled(ctx context.Context, studentID string) (bool, error) {
	return e.subs.HasActive(ctx, studentID, e.now().UTC())
}
