package postgres

import (
	"context"
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/models"
	"github.com/ask4sham/letsrevise-attempts/internal/repositories"
	"gorm.io/gorm"
)

type SubscriptionPostgreSQL struct {
	db *gorm.DB
}

func NewSubscriptionPostgreSQL(db *gorm.DB) repositories.SubscriptionRepository {
	return &SubscriptionPostgreSQL{db: db}
}

func (s *SubscriptionPostgreSQL) HasActive(ctx context.Context, studentID string, at time.Time) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("student_id = ? AND active = ?", studentID, true).
		Where("(expires_at IS NULL OR expires_at > ?)", at).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

type repository struct {
	attempt      repositories.AttemptRepository
	paper        repositories.PaperRepository
	item         repositories.ItemRepository
	subscription repositories.SubscriptionRepository
}

// NewRepository wires every gorm-backed store onto one connection.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		attempt:      NewAttemptPostgreSQL(db),
		paper:        NewPaperPostgreSQL(db),
		item:         NewItemPostgreSQL(db),
		subscription: NewSubscriptionPostgreSQL(db),
	}
}

func (r *repository) Attempt() repositories.AttemptRepository           { return r.attempt }
func (r *repository) Paper() repositories.PaperRepository               { return r.paper }
func (r *repository) Item() repositories.ItemRepository                 { return r.item }
func (r *repository) Subscription() repositories.SubscriptionRepository { return r.subscription }

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(models.AllModels()...)
}
