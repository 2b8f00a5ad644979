package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/ask4sham/letsrevise-attempts/internal/repositories"
	"github.com/ask4sham/letsrevise-attempts/internal/utils"
)

const (
	paperKeyPrefix = "attempts:paper:"
	itemKeyPrefix  = "attempts:item:"
)

func PaperKey(id string) string { return paperKeyPrefix + id }
func ItemKey(id string) string  { return itemKeyPrefix + id }

// PaperReader is a read-through cache in front of the paper store. Papers are
// immutable once attempted, so entries are only expired by TTL.
type PaperReader struct {
	next   repositories.PaperRepository
	cache  CacheService
	ttl    time.Duration
	logger utils.Logger
}

func NewPaperReader(next repositories.PaperRepository, cache CacheService, ttl time.Duration, logger utils.Logger) *PaperReader {
	return &PaperReader{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (p *PaperReader) GetByID(ctx context.Context, id string) (*models.AssessmentPaper, error) {
	var paper models.AssessmentPaper
	if err := p.cache.Get(ctx, PaperKey(id), &paper); err == nil {
		return &paper, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		p.logger.WarnContext(ctx, "paper cache unavailable, reading through", "paper_id", id, "error", err)
	}

	loaded, err := p.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, PaperKey(id), loaded, p.ttl); err != nil {
		p.logger.WarnContext(ctx, "failed to cache paper", "paper_id", id, "error", err)
	}
	return loaded, nil
}

// Invalidate drops a paper from the cache, e.g. after an out-of-band edit.
func (p *PaperReader) Invalidate(ctx context.Context, id string) error {
	return p.cache.Delete(ctx, PaperKey(id))
}

// ItemReader caches items one key per item so papers sharing items share entries.
type ItemReader struct {
	next   repositories.ItemRepository
	cache  CacheService
	ttl    time.Duration
	logger utils.Logger
}

func NewItemReader(next repositories.ItemRepository, cache CacheService, ttl time.Duration, logger utils.Logger) *ItemReader {
	return &ItemReader{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (r *ItemReader) GetByID(ctx context.Context, id string) (*models.AssessmentItem, error) {
	items, err := r.GetByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	item, ok := items[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return item, nil
}

func (r *ItemReader) GetByIDs(ctx context.Context, ids []string) (map[string]*models.AssessmentItem, error) {
	out := make(map[string]*models.AssessmentItem, len(ids))
	var missing []string
	for _, id := range ids {
		var item models.AssessmentItem
		if err := r.cache.Get(ctx, ItemKey(id), &item); err == nil {
			out[id] = &item
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := r.next.GetByIDs(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	for id, item := range loaded {
		out[id] = item
		if err := r.cache.Set(ctx, ItemKey(id), item, r.ttl); err != nil {
			r.logger.WarnContext(ctx, "failed to cache item", "item_id", id, "error", err)
		}
	}
	return out, nil
}

// InvalidateAll drops every cached paper and item.
func InvalidateAll(ctx context.Context, c CacheService) error {
	if err := c.DeletePattern(ctx, paperKeyPrefix+"*"); err != nil {
		return err
	}
	return c.DeletePattern(ctx, itemKeyPrefix+"*")
}

// Repository swaps the paper and item readers of an underlying repository for cached ones.
type Repository struct {
	repositories.Repository
	papers *PaperReader
	items  *ItemReader
}

func WrapRepository(repo repositories.Repository, c CacheService, ttl time.Duration, logger utils.Logger) *Repository {
	return &Repository{
		Repository: repo,
		papers:     NewPaperReader(repo.Paper(), c, ttl, logger),
		items:      NewItemReader(repo.Item(), c, ttl, logger),
	}
}

func (r *Repository) Paper() repositories.PaperRepository { return r.papers }
func (r *Repository) Item() repositories.ItemRepository   { return r.items }
