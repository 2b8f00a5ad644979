package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedDoc = `{
  "items": [
    {"id": "q1", "type": "mcq", "prompt": "2 + 2 = ?", "options": ["3", "4"], "correct_index": 1, "marks": 1},
    {"id": "q2", "type": "short", "prompt": "Capital of France?", "correct_answer": "Paris", "marks": 2}
  ],
  "papers": [
    {"id": "p1", "title": "Warm-up", "duration_seconds": 300,
     "items": [{"item_id": "q2", "order": 2}, {"item_id": "q1", "order": 1}]}
  ],
  "subscriptions": [
    {"student_id": "s1", "plan": "monthly", "active": true}
  ]
}`

func TestStore_LoadSeed(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	seed, err := s.LoadSeed(strings.NewReader(seedDoc))
	require.NoError(t, err)
	assert.Len(t, seed.Items, 2)
	assert.Len(t, seed.Papers, 1)

	paper, err := s.Paper().GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 300, paper.DurationSeconds)
	assert.Equal(t, []string{"q1", "q2"}, paper.ItemIDs())

	items, err := s.Item().GetByIDs(ctx, paper.ItemIDs())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, []string{"3", "4"}, []string(items["q1"].Options))
	assert.Equal(t, "Paris", *items["q2"].CorrectAnswer)

	ok, err := s.Subscription().HasActive(ctx, "s1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_LoadSeedRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "malformed", doc: `{"items": [`},
		{name: "unknown field", doc: `{"questions": []}`},
		{name: "dangling item", doc: `{"papers": [{"id": "p1", "items": [{"item_id": "nope", "order": 1}]}]}`},
		{name: "paper without id", doc: `{"papers": [{"title": "x"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStore().LoadSeed(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestStore_LoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(seedDoc), 0o600))

	s := NewStore()
	_, err := s.LoadSeedFile(path)
	require.NoError(t, err)
	_, err = s.Paper().GetByID(context.Background(), "p1")
	assert.NoError(t, err)

	_, err = NewStore().LoadSeedFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
