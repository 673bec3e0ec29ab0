package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/accession-studio/engine/internal/models"
	"github.com/accession-studio/engine/pkg/database"
	appErr "github.com/accession-studio/engine/pkg/errors"
)

// OperationRepository stores the deprecation and merge annotations of lineages.
type OperationRepository interface {
	BaseRepository[models.AccessionOperation]
	// FindByAccession returns the operation recorded for a lineage, or nil.
	FindByAccession(ctx context.Context, accession string) (*models.AccessionOperation, error)
	FindByAccessionIn(ctx context.Context, accessions []string) ([]models.AccessionOperation, error)
	// ListMergedInto returns the merge links pointing at target.
	ListMergedInto(ctx context.Context, target string) ([]models.AccessionOperation, error)
	// Record stores a new operation. A lineage that already carries one is
	// reported as a conflict.
	Record(ctx context.Context, op *models.AccessionOperation) error
}

type operationRepository struct {
	BaseRepository[models.AccessionOperation]
	db *gorm.DB
}

func NewOperationRepository(db *gorm.DB) OperationRepository {
	return &operationRepository{BaseRepository: NewBaseRepository[models.AccessionOperation](db), db: db}
}

func (r *operationRepository) FindByAccession(ctx context.Context, accession string) (*models.AccessionOperation, error) {
	var out models.AccessionOperation
	if err := r.db.WithContext(ctx).Where("accession = ?", accession).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "get accession operation failed")
	}
	return &out, nil
}

func (r *operationRepository) FindByAccessionIn(ctx context.Context, accessions []string) ([]models.AccessionOperation, error) {
	var out []models.AccessionOperation
	if len(accessions) == 0 {
		return out, nil
	}
	if err := r.db.WithContext(ctx).Where("accession IN ?", accessions).Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list accession operations failed")
	}
	return out, nil
}

func (r *operationRepository) ListMergedInto(ctx context.Context, target string) ([]models.AccessionOperation, error) {
	var out []models.AccessionOperation
	err := r.db.WithContext(ctx).
		Where("merge_into = ? AND type = ?", target, models.OperationMerged).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list merged accessions failed")
	}
	return out, nil
}

func (r *operationRepository) Record(ctx context.Context, op *models.AccessionOperation) error {
	if err := r.Create(ctx, op); err != nil {
		if database.IsUniqueViolation(err) {
			return appErr.Wrap(err, appErr.CodeConflict, "accession lineage was modified concurrently").
				WithMeta(appErr.MetaAccession, op.Accession)
		}
		return err
	}
	return nil
}
