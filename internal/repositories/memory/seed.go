package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ask4sham/letsrevise-attempts/internal/models"
)

// Seed is the JSON document accepted by LoadSeed. Field names follow the API
// representation of each model.
type Seed struct {
	Items         []models.AssessmentItem  `json:"items"`
	Papers        []models.AssessmentPaper `json:"papers"`
	Subscriptions []models.Subscription    `json:"subscriptions"`
}

// LoadSeed decodes a Seed from r and adds its content to the store. Papers may
// only reference items present in the store once loading completes.
func (s *Store) LoadSeed(r io.Reader) (*Seed, error) {
	var seed Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}

	s.PutItem(seed.Items...)
	for _, paper := range seed.Papers {
		if paper.ID == "" {
			return nil, errors.New("seed paper without id")
		}
		for _, ref := range paper.Items {
			if _, ok := s.item(ref.ItemID); !ok {
				return nil, fmt.Errorf("seed paper %s references unknown item %s", paper.ID, ref.ItemID)
			}
		}
		s.PutPaper(paper)
	}
	for _, sub := range seed.Subscriptions {
		s.PutSubscription(sub)
	}
	return &seed, nil
}

func (s *Store) LoadSeedFile(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return s.LoadSeed(f)
}

func (s *Store) item(id string) (models.AssessmentItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}
