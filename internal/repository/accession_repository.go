package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/accession-studio/engine/internal/models"
	"github.com/accession-studio/engine/pkg/database"
	appErr "github.com/accession-studio/engine/pkg/errors"
)

const insertBatchSize = 200

// AccessionRepository stores the versioned records of every accession lineage.
type AccessionRepository interface {
	BaseRepository[models.AccessionRecord]
	// FindByHashIn returns the active records holding any of the given hashes.
	FindByHashIn(ctx context.Context, hashes []string) ([]models.AccessionRecord, error)
	// FindByAccession returns every version of a lineage, oldest first.
	FindByAccession(ctx context.Context, accession string) ([]models.AccessionRecord, error)
	// FindActiveByAccessionIn returns the active record of each given lineage.
	FindActiveByAccessionIn(ctx context.Context, accessions []string) ([]models.AccessionRecord, error)
	FindByAccessionAndVersion(ctx context.Context, accession string, version int) (*models.AccessionRecord, error)
	// ExistingAccessions returns the subset of accessions that have at least one record.
	ExistingAccessions(ctx context.Context, accessions []string) ([]string, error)
	// MaxVersion returns the head version of a lineage, or 0 when it has none.
	MaxVersion(ctx context.Context, accession string) (int, error)
	// Insert writes records inactive. A clash on (accession, version) is
	// reported as an already-exists error carrying the accession.
	Insert(ctx context.Context, records []models.AccessionRecord) error
	// EnableByHashIn activates the inactive records of the given lineages
	// holding the given hashes. A clash with another active record is
	// reported as an already-exists error carrying the hash.
	EnableByHashIn(ctx context.Context, accessions, hashes []string) (int64, error)
	// EnableVersion activates a single version of a lineage.
	EnableVersion(ctx context.Context, accession string, version int, hash string) error
	// DisableByAccession flips every active record of a lineage inactive.
	DisableByAccession(ctx context.Context, accession string) (int64, error)
}

type accessionRepository struct {
	BaseRepository[models.AccessionRecord]
	db *gorm.DB
}

func NewAccessionRepository(db *gorm.DB) AccessionRepository {
	return &accessionRepository{BaseRepository: NewBaseRepository[models.AccessionRecord](db), db: db}
}

func (r *accessionRepository) FindByHashIn(ctx context.Context, hashes []string) ([]models.AccessionRecord, error) {
	var out []models.AccessionRecord
	if len(hashes) == 0 {
		return out, nil
	}
	if err := r.db.WithContext(ctx).Where("hash IN ? AND active = ?", hashes, true).Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "find records by hash failed")
	}
	return out, nil
}

func (r *accessionRepository) FindByAccession(ctx context.Context, accession string) ([]models.AccessionRecord, error) {
	var out []models.AccessionRecord
	if err := r.db.WithContext(ctx).Where("accession = ?", accession).Order("version ASC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "find records by accession failed")
	}
	return out, nil
}

func (r *accessionRepository) FindActiveByAccessionIn(ctx context.Context, accessions []string) ([]models.AccessionRecord, error) {
	var out []models.AccessionRecord
	if len(accessions) == 0 {
		return out, nil
	}
	if err := r.db.WithContext(ctx).Where("accession IN ? AND active = ?", accessions, true).Order("accession ASC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "find active records by accession failed")
	}
	return out, nil
}

func (r *accessionRepository) FindByAccessionAndVersion(ctx context.Context, accession string, version int) (*models.AccessionRecord, error) {
	var out models.AccessionRecord
	if err := r.db.WithContext(ctx).Where("accession = ? AND version = ?", accession, version).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.AccessionVersionDoesNotExist(accession, version)
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "get record version failed")
	}
	return &out, nil
}

func (r *accessionRepository) ExistingAccessions(ctx context.Context, accessions []string) ([]string, error) {
	var out []string
	if len(accessions) == 0 {
		return out, nil
	}
	err := r.db.WithContext(ctx).Model(&models.AccessionRecord{}).
		Where("accession IN ?", accessions).
		Distinct("accession").
		Pluck("accession", &out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "check existing accessions failed")
	}
	return out, nil
}

func (r *accessionRepository) MaxVersion(ctx context.Context, accession string) (int, error) {
	var max int
	err := r.db.WithContext(ctx).Model(&models.AccessionRecord{}).
		Where("accession = ?", accession).
		Select("COALESCE(MAX(version), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, appErr.Wrap(err, appErr.CodeInternal, "get max version failed")
	}
	return max, nil
}

func (r *accessionRepository) Insert(ctx context.Context, records []models.AccessionRecord) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		records[i].Active = false
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&records, insertBatchSize).Error; err != nil {
		if database.IsUniqueViolation(err) {
			accessions := make([]string, len(records))
			for i, rec := range records {
				accessions[i] = rec.Accession
			}
			return appErr.AccessionAlreadyExists(conflictSubject(accessions))
		}
		return appErr.Wrap(err, appErr.CodeInternal, "insert records failed")
	}
	return nil
}

func (r *accessionRepository) EnableByHashIn(ctx context.Context, accessions, hashes []string) (int64, error) {
	if len(accessions) == 0 || len(hashes) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.AccessionRecord{}).
		Where("accession IN ? AND hash IN ? AND active = ?", accessions, hashes, false).
		Update("active", true)
	if res.Error != nil {
		if database.IsUniqueViolation(res.Error) {
			return 0, appErr.HashAlreadyExists(conflictSubject(hashes))
		}
		return 0, appErr.Wrap(res.Error, appErr.CodeInternal, "enable records failed")
	}
	return res.RowsAffected, nil
}

func (r *accessionRepository) EnableVersion(ctx context.Context, accession string, version int, hash string) error {
	res := r.db.WithContext(ctx).Model(&models.AccessionRecord{}).
		Where("accession = ? AND version = ?", accession, version).
		Update("active", true)
	if res.Error != nil {
		if database.IsUniqueViolation(res.Error) {
			return appErr.HashAlreadyExists(hash)
		}
		return appErr.Wrap(res.Error, appErr.CodeInternal, "enable record version failed")
	}
	if res.RowsAffected == 0 {
		return appErr.AccessionVersionDoesNotExist(accession, version)
	}
	return nil
}

func (r *accessionRepository) DisableByAccession(ctx context.Context, accession string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.AccessionRecord{}).
		Where("accession = ? AND active = ?", accession, true).
		Update("active", false)
	if res.Error != nil {
		return 0, appErr.Wrap(res.Error, appErr.CodeInternal, "disable records failed")
	}
	return res.RowsAffected, nil
}

// conflictSubject names the offending value when a single-row statement
// failed; a batch statement does not say which row clashed.
func conflictSubject(values []string) string {
	if len(values) == 1 {
		return values[0]
	}
	return ""
}
