package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/ask4sham/letsrevise-attempts/internal/repositories"
	"github.com/ask4sham/letsrevise-attempts/internal/repositories/memory"
	"github.com/ask4sham/letsrevise-attempts/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapCache stores JSON like redis would.
type mapCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (m *mapCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	return nil
}

func (m *mapCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return errors.New("connection refused")
	}
	b, ok := m.data[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (m *mapCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mapCache) DeletePattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

// countingPapers counts reads that reach the backing store.
type countingPapers struct {
	repositories.PaperRepository
	calls int
}

func (c *countingPapers) GetByID(ctx context.Context, id string) (*models.AssessmentPaper, error) {
	c.calls++
	return c.PaperRepository.GetByID(ctx, id)
}

func seededStore() *memory.Store {
	s := memory.NewStore()
	s.PutItem(
		models.AssessmentItem{ID: "q1", Type: models.ItemMCQ, Options: []string{"x", "y"}, CorrectIndex: models.IntPtr(1), Marks: 1},
		models.AssessmentItem{ID: "q2", Type: models.ItemShort, CorrectAnswer: models.StringPtr("photosynthesis"), Marks: 2},
	)
	s.PutPaper(models.AssessmentPaper{
		ID: "p1", Title: "Biology", DurationSeconds: 600,
		Items: []models.PaperItem{{ItemID: "q1", Order: 1}, {ItemID: "q2", Order: 2}},
	})
	return s
}

func TestPaperReader_ReadThrough(t *testing.T) {
	ctx := context.Background()
	backing := &countingPapers{PaperRepository: seededStore().Paper()}
	c := newMapCache()
	reader := NewPaperReader(backing, c, time.Minute, utils.NewNopLogger())

	first, err := reader.GetByID(ctx, "p1")
	require.NoError(t, err)
	second, err := reader.GetByID(ctx, "p1")
	require.NoError(t, err)

	assert.Equal(t, 1, backing.calls)
	assert.Equal(t, first.ItemIDs(), second.ItemIDs())
	assert.Equal(t, 600, second.DurationSeconds)

	require.NoError(t, reader.Invalidate(ctx, "p1"))
	_, err = reader.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, backing.calls)
}

func TestPaperReader_CacheFailureFallsThrough(t *testing.T) {
	ctx := context.Background()
	backing := &countingPapers{PaperRepository: seededStore().Paper()}
	c := newMapCache()
	c.failGet = true
	reader := NewPaperReader(backing, c, time.Minute, utils.NewNopLogger())

	paper, err := reader.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Biology", paper.Title)

	_, err = reader.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestItemReader_MixesCachedAndLoaded(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	repo := WrapRepository(seededStore(), c, time.Minute, utils.NewNopLogger())

	item, err := repo.Item().GetByID(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, 1, *item.CorrectIndex)

	items, err := repo.Item().GetByIDs(ctx, []string{"q1", "q2", "q3"})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, "photosynthesis", *items["q2"].CorrectAnswer)

	_, err = repo.Item().GetByID(ctx, "q3")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	require.NoError(t, InvalidateAll(ctx, c))
	assert.Empty(t, c.data)
}
