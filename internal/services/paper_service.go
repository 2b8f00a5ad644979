package services

import (
	"context"
	"fmt"

	"github.com/ask4sham/letsrevise-attempts/internal/repositories"
	"github.com/ask4sham/letsrevise-attempts/internal/utils"
)

type paperService struct {
	repo         repositories.Repository
	entitlements EntitlementChecker
	logger       utils.Logger
}

func NewPaperService(repo repositories.Repository, entitlements EntitlementChecker, logger utils.Logger) PaperService {
	return &paperService{repo: repo, entitlements: entitlements, logger: logger}
}

// GetPaper returns the paper with every answer key removed.
func (s *paperService) GetPaper(ctx context.Context, id Identity, paperID string) (*PaperView, error) {
	ok, err := s.entitlements.IsEntitled(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check entitlement: %w", err)
	}
	if !ok {
		return nil, ErrSubscriptionRequired
	}

	paper, err := s.repo.Paper().GetByID(ctx, paperID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPaperNotFound
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}

	items, err := s.repo.Item().GetByIDs(ctx, paper.ItemIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to load paper items: %w", err)
	}
	if missing := len(paper.Items) - len(items); missing > 0 {
		s.logger.WarnContext(ctx, "Paper references missing items", "paper_id", paperID, "missing", missing)
	}

	return buildPaperView(paper, items), nil
}
