package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/spegrid/execreview-backend/internal/domain"
	"github.com/spegrid/execreview-backend/internal/platform/logger"
)

type BusinessRepo interface {
	Create(ctx context.Context, b *domain.Business) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error)
	List(ctx context.Context) ([]*domain.Business, error)
}

type businessRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBusinessRepo(db *gorm.DB, baseLog *logger.Logger) BusinessRepo {
	return &businessRepo{
		db:  db,
		log: baseLog.With("repo", "BusinessRepo"),
	}
}

func (r *businessRepo) Create(ctx context.Context, b *domain.Business) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *businessRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error) {
	var b domain.Business
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *businessRepo) List(ctx context.Context) ([]*domain.Business, error) {
	var out []*domain.Business
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
