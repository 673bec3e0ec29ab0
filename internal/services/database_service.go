package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/accession-studio/engine/internal/models"
	"github.com/accession-studio/engine/internal/repository"
	"github.com/accession-studio/engine/pkg/database"
	appErr "github.com/accession-studio/engine/pkg/errors"
	"github.com/accession-studio/engine/pkg/logger"
)

// DatabaseService owns every mutation of accession records. Each lineage
// mutation runs in one transaction; uniqueness of active hashes and of
// (accession, version) is left to storage.
type DatabaseService[M any] interface {
	// Lookups
	FindAccessionsByHash(ctx context.Context, hashes []string) ([]Accessioned[M], error)
	FindAccession(ctx context.Context, accession string) (*History[M], error)
	FindAllAccessions(ctx context.Context, accessions []string) ([]Accessioned[M], error)
	FindAccessionVersion(ctx context.Context, accession string, version int) (*Accessioned[M], error)
	FindLifecycle(ctx context.Context, accession string) (*Lifecycle, error)
	FindMergedInto(ctx context.Context, target string) ([]MergeLink, error)
	ExistingAccessions(ctx context.Context, accessions []string) ([]string, error)

	// Mutations
	Insert(ctx context.Context, entries []Accessioned[M]) ([]Accessioned[M], error)
	Patch(ctx context.Context, accession, hash string, data M) (*Accessioned[M], error)
	Update(ctx context.Context, accession, hash string, data M, version int) (*Accessioned[M], error)
	Deprecate(ctx context.Context, accession, reason string) error
	Merge(ctx context.Context, source, target, reason string) error
}

type databaseService[M any] struct {
	store   *repository.Store
	metrics *Metrics
}

func NewDatabaseService[M any](store *repository.Store, metrics *Metrics) DatabaseService[M] {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &databaseService[M]{store: store, metrics: metrics}
}

func (s *databaseService[M]) FindAccessionsByHash(ctx context.Context, hashes []string) ([]Accessioned[M], error) {
	recs, err := s.store.Accessions().FindByHashIn(ctx, hashes)
	if err != nil {
		return nil, err
	}
	return decodeRecords[M](recs)
}

func (s *databaseService[M]) FindAccession(ctx context.Context, accession string) (*History[M], error) {
	recs, err := s.store.Accessions().FindByAccession(ctx, accession)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, appErr.AccessionDoesNotExist(accession)
	}
	if err := s.checkOperation(ctx, s.store, accession); err != nil {
		return nil, err
	}
	versions, err := decodeRecords[M](recs)
	if err != nil {
		return nil, err
	}
	return &History[M]{Accession: accession, Versions: versions}, nil
}

// FindAllAccessions returns the active version of each accession. Deprecated
// and merged lineages have no active version and are left out.
func (s *databaseService[M]) FindAllAccessions(ctx context.Context, accessions []string) ([]Accessioned[M], error) {
	recs, err := s.store.Accessions().FindActiveByAccessionIn(ctx, accessions)
	if err != nil {
		return nil, err
	}
	return decodeRecords[M](recs)
}

func (s *databaseService[M]) FindAccessionVersion(ctx context.Context, accession string, version int) (*Accessioned[M], error) {
	max, err := s.store.Accessions().MaxVersion(ctx, accession)
	if err != nil {
		return nil, err
	}
	if max == 0 {
		return nil, appErr.AccessionDoesNotExist(accession)
	}
	if err := s.checkOperation(ctx, s.store, accession); err != nil {
		return nil, err
	}
	rec, err := s.store.Accessions().FindByAccessionAndVersion(ctx, accession, version)
	if err != nil {
		return nil, err
	}
	out, err := decodeRecord[M](*rec)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *databaseService[M]) FindLifecycle(ctx context.Context, accession string) (*Lifecycle, error) {
	max, err := s.store.Accessions().MaxVersion(ctx, accession)
	if err != nil {
		return nil, err
	}
	if max == 0 {
		return nil, appErr.AccessionDoesNotExist(accession)
	}
	op, err := s.store.Operations().FindByAccession(ctx, accession)
	if err != nil {
		return nil, err
	}
	lc := &Lifecycle{Accession: accession, State: op.State(), Versions: max}
	if op != nil {
		lc.MergedInto = op.MergeInto
		lc.Reason = op.Reason
		changed := op.CreatedAt
		lc.ChangedAt = &changed
	}
	return lc, nil
}

func (s *databaseService[M]) FindMergedInto(ctx context.Context, target string) ([]MergeLink, error) {
	ops, err := s.store.Operations().ListMergedInto(ctx, target)
	if err != nil {
		return nil, err
	}
	out := make([]MergeLink, 0, len(ops))
	for _, op := range ops {
		out = append(out, MergeLink{Source: op.Accession, Target: op.MergeInto, Reason: op.Reason, CreatedAt: op.CreatedAt})
	}
	return out, nil
}

func (s *databaseService[M]) ExistingAccessions(ctx context.Context, accessions []string) ([]string, error) {
	return s.store.Accessions().ExistingAccessions(ctx, accessions)
}

// Insert stores new lineages at version 1. Rows are written inactive and then
// enabled, so a clash on the accession and a clash on the content hash are
// reported as distinct already-exists errors. Nothing is stored on failure.
func (s *databaseService[M]) Insert(ctx context.Context, entries []Accessioned[M]) ([]Accessioned[M], error) {
	if len(entries) == 0 {
		return nil, nil
	}

	recs := make([]models.AccessionRecord, len(entries))
	accessions := make([]string, len(entries))
	hashes := make([]string, len(entries))
	seenAcc := make(map[string]struct{}, len(entries))
	seenHash := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.Accession == "" || e.Hash == "" {
			return nil, appErr.New(appErr.CodeInvalid, "accession and hash are required")
		}
		if _, dup := seenAcc[e.Accession]; dup {
			return nil, appErr.New(appErr.CodeInvalid, fmt.Sprintf("accession %q appears twice in batch", e.Accession))
		}
		if _, dup := seenHash[e.Hash]; dup {
			return nil, appErr.New(appErr.CodeInvalid, fmt.Sprintf("hash %q appears twice in batch", e.Hash))
		}
		seenAcc[e.Accession] = struct{}{}
		seenHash[e.Hash] = struct{}{}

		data, err := encodeData(e.Data)
		if err != nil {
			return nil, err
		}
		recs[i] = models.AccessionRecord{Accession: e.Accession, Version: 1, Hash: e.Hash, Data: data}
		accessions[i] = e.Accession
		hashes[i] = e.Hash
	}

	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := tx.Accessions().Insert(ctx, recs); err != nil {
			return err
		}
		n, err := tx.Accessions().EnableByHashIn(ctx, accessions, hashes)
		if err != nil {
			return err
		}
		if n != int64(len(recs)) {
			return appErr.New(appErr.CodeConflict, fmt.Sprintf("enabled %d of %d inserted records", n, len(recs)))
		}
		return nil
	})
	s.metrics.observeOperation("insert", err)
	if err != nil {
		return nil, err
	}

	out := make([]Accessioned[M], len(entries))
	for i, e := range entries {
		out[i] = Accessioned[M]{
			Accession: e.Accession,
			Hash:      e.Hash,
			Version:   1,
			Active:    true,
			Data:      e.Data,
			CreatedAt: recs[i].CreatedAt,
		}
	}
	logger.L().Info("accessions inserted", zap.Int("count", len(out)))
	return out, nil
}

// Patch appends a new head version and retires the previous ones.
func (s *databaseService[M]) Patch(ctx context.Context, accession, hash string, data M) (*Accessioned[M], error) {
	logger.L().Info("patch accession", zap.String("accession", accession), zap.String("hash", hash))

	payload, err := encodeData(data)
	if err != nil {
		return nil, err
	}

	var rec models.AccessionRecord
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		max, err := s.checkLineage(ctx, tx, accession)
		if err != nil {
			return err
		}
		if _, err := tx.Accessions().DisableByAccession(ctx, accession); err != nil {
			return err
		}

		rec = models.AccessionRecord{Accession: accession, Version: max + 1, Hash: hash, Data: payload}
		if err := tx.Accessions().Insert(ctx, []models.AccessionRecord{rec}); err != nil {
			if appErr.IsAccessionConflict(err) {
				return appErr.Wrap(err, appErr.CodeConflict, "accession was patched concurrently").
					WithMeta(appErr.MetaAccession, accession)
			}
			return err
		}
		if err := tx.Accessions().EnableVersion(ctx, accession, rec.Version, hash); err != nil {
			return err
		}
		stored, err := tx.Accessions().FindByAccessionAndVersion(ctx, accession, rec.Version)
		if err != nil {
			return err
		}
		rec = *stored
		return nil
	})
	s.metrics.observeOperation("patch", err)
	if err != nil {
		return nil, err
	}

	out, err := decodeRecord[M](rec)
	if err != nil {
		return nil, err
	}
	logger.L().Info("accession patched", zap.String("accession", accession), zap.Int("version", out.Version))
	return &out, nil
}

// Update rewrites an existing version in place. No version is appended and
// the active flag of the row is left as it was.
func (s *databaseService[M]) Update(ctx context.Context, accession, hash string, data M, version int) (*Accessioned[M], error) {
	logger.L().Info("update accession", zap.String("accession", accession), zap.Int("version", version))

	payload, err := encodeData(data)
	if err != nil {
		return nil, err
	}

	var rec *models.AccessionRecord
	err = s.store.InTx(ctx, func(tx *repository.Store) error {
		max, err := s.checkLineage(ctx, tx, accession)
		if err != nil {
			return err
		}
		if version < 1 || version > max {
			return appErr.AccessionVersionDoesNotExist(accession, version)
		}
		rec, err = tx.Accessions().FindByAccessionAndVersion(ctx, accession, version)
		if err != nil {
			return err
		}
		rec.Hash = hash
		rec.Data = payload
		if err := tx.Accessions().Update(ctx, rec); err != nil {
			if database.IsUniqueViolation(err) {
				return appErr.HashAlreadyExists(hash)
			}
			return err
		}
		return nil
	})
	s.metrics.observeOperation("update", err)
	if err != nil {
		return nil, err
	}

	out, err := decodeRecord[M](*rec)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Deprecate retires a lineage. Its records stay for history but are no longer
// active, so the content may be accessioned again.
func (s *databaseService[M]) Deprecate(ctx context.Context, accession, reason string) error {
	logger.L().Info("deprecate accession", zap.String("accession", accession), zap.String("reason", reason))

	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		if _, err := s.checkLineage(ctx, tx, accession); err != nil {
			return err
		}
		op := &models.AccessionOperation{Accession: accession, Type: models.OperationDeprecated, Reason: reason}
		if err := tx.Operations().Record(ctx, op); err != nil {
			return err
		}
		_, err := tx.Accessions().DisableByAccession(ctx, accession)
		return err
	})
	s.metrics.observeOperation("deprecate", err)
	return err
}

// Merge folds source into target. The target must be a live lineage, so merge
// links never chain and never form a cycle.
func (s *databaseService[M]) Merge(ctx context.Context, source, target, reason string) error {
	logger.L().Info("merge accession", zap.String("source", source), zap.String("target", target), zap.String("reason", reason))

	if source == target {
		err := appErr.New(appErr.CodeInvalid, "an accession cannot be merged into itself").
			WithMeta(appErr.MetaAccession, source)
		s.metrics.observeOperation("merge", err)
		return err
	}

	err := s.store.InTx(ctx, func(tx *repository.Store) error {
		if _, err := s.checkLineage(ctx, tx, source); err != nil {
			return err
		}
		if _, err := s.checkLineage(ctx, tx, target); err != nil {
			return err
		}
		op := &models.AccessionOperation{Accession: source, Type: models.OperationMerged, MergeInto: target, Reason: reason}
		if err := tx.Operations().Record(ctx, op); err != nil {
			return err
		}
		_, err := tx.Accessions().DisableByAccession(ctx, source)
		return err
	})
	s.metrics.observeOperation("merge", err)
	return err
}

// checkLineage returns the head version of a live lineage, or the single
// error describing why it cannot be modified.
func (s *databaseService[M]) checkLineage(ctx context.Context, tx *repository.Store, accession string) (int, error) {
	max, err := tx.Accessions().MaxVersion(ctx, accession)
	if err != nil {
		return 0, err
	}
	if max == 0 {
		return 0, appErr.AccessionDoesNotExist(accession)
	}
	if err := s.checkOperation(ctx, tx, accession); err != nil {
		return 0, err
	}
	return max, nil
}

func (s *databaseService[M]) checkOperation(ctx context.Context, store *repository.Store, accession string) error {
	op, err := store.Operations().FindByAccession(ctx, accession)
	if err != nil {
		return err
	}
	switch op.State() {
	case models.StateMerged:
		return appErr.AccessionMerged(accession, op.MergeInto)
	case models.StateDeprecated:
		return appErr.AccessionDeprecated(accession, op.Reason)
	}
	return nil
}
