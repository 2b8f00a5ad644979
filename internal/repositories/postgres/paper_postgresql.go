package postgres

import (
	"context"

	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/ask4sham/letsrevise-attempts/internal/repositories"
	"gorm.io/gorm"
)

type PaperPostgreSQL struct {
	db *gorm.DB
}

func NewPaperPostgreSQL(db *gorm.DB) repositories.PaperRepository {
	return &PaperPostgreSQL{db: db}
}

func (p *PaperPostgreSQL) GetByID(ctx context.Context, id string) (*models.AssessmentPaper, error) {
	var paper models.AssessmentPaper
	if err := p.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&paper, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &paper, nil
}

type ItemPostgreSQL struct {
	db *gorm.DB
}

func NewItemPostgreSQL(db *gorm.DB) repositories.ItemRepository {
	return &ItemPostgreSQL{db: db}
}

func (i *ItemPostgreSQL) GetByID(ctx context.Context, id string) (*models.AssessmentItem, error) {
	var item models.AssessmentItem
	if err := i.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &item, nil
}

func (i *ItemPostgreSQL) GetByIDs(ctx context.Context, ids []string) (map[string]*models.AssessmentItem, error) {
	out := make(map[string]*models.AssessmentItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var items []models.AssessmentItem
	if err := i.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	for idx := range items {
		item := items[idx]
		out[item.ID] = &item
	}
	return out, nil
}
