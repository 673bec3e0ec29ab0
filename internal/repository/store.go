package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/accession-studio/engine/pkg/database"
	appErr "github.com/accession-studio/engine/pkg/errors"
)

// Store groups the repositories that share one connection or transaction.
type Store struct {
	db         *gorm.DB
	isolation  sql.IsolationLevel
	accessions AccessionRepository
	operations OperationRepository
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIsolation sets the isolation level of transactions opened by InTx.
// Postgres deployments run lineage writes serializable.
func WithIsolation(level sql.IsolationLevel) StoreOption {
	return func(s *Store) { s.isolation = level }
}

func NewStore(db *gorm.DB, opts ...StoreOption) *Store {
	s := &Store{db: db, isolation: sql.LevelDefault}
	for _, opt := range opts {
		opt(s)
	}
	return s.bind(db)
}

func (s *Store) bind(db *gorm.DB) *Store {
	return &Store{
		db:         db,
		isolation:  s.isolation,
		accessions: NewAccessionRepository(db),
		operations: NewOperationRepository(db),
	}
}

func (s *Store) Accessions() AccessionRepository { return s.accessions }

func (s *Store) Operations() OperationRepository { return s.operations }

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB { return s.db }

// InTx runs fn against repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
// Serialization failures surface as conflict errors.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	tx := s.db.WithContext(ctx).Begin(&sql.TxOptions{Isolation: s.isolation})
	if tx.Error != nil {
		return appErr.Wrap(tx.Error, appErr.CodeInternal, "begin transaction failed")
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(s.bind(tx)); err != nil {
		tx.Rollback()
		return translateTxError(err)
	}

	if err := tx.Commit().Error; err != nil {
		return translateTxError(appErr.Wrap(err, appErr.CodeInternal, "commit transaction failed"))
	}
	return nil
}

func translateTxError(err error) error {
	if database.IsSerializationFailure(err) {
		return appErr.Wrap(err, appErr.CodeConflict, "concurrent modification, retry the operation")
	}
	return err
}
