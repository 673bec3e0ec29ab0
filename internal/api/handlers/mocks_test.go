package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/accession-studio/engine/internal/models"
	"github.com/accession-studio/engine/internal/queue"
	"github.com/accession-studio/engine/internal/services"
)

type mockAccessioningService struct {
	mock.Mock
}

func (m *mockAccessioningService) result(args mock.Arguments) (services.Result[models.Document], error) {
	if v := args.Get(0); v != nil {
		return v.(services.Result[models.Document]), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccessioningService) GetOrCreateAccessions(ctx context.Context, objects []models.Document) (services.Result[models.Document], error) {
	return m.result(m.Called(ctx, objects))
}

func (m *mockAccessioningService) GetAccessions(ctx context.Context, objects []models.Document) (services.Result[models.Document], error) {
	return m.result(m.Called(ctx, objects))
}

func (m *mockAccessioningService) GetByAccessions(ctx context.Context, accessions []string) (services.Result[models.Document], error) {
	return m.result(m.Called(ctx, accessions))
}

func (m *mockAccessioningService) Patch(ctx context.Context, accession string, object models.Document) (*services.Accessioned[models.Document], error) {
	args := m.Called(ctx, accession, object)
	if v := args.Get(0); v != nil {
		return v.(*services.Accessioned[models.Document]), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccessioningService) Update(ctx context.Context, accession string, version int, object models.Document) (*services.Accessioned[models.Document], error) {
	args := m.Called(ctx, accession, version, object)
	if v := args.Get(0); v != nil {
		return v.(*services.Accessioned[models.Document]), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccessioningService) Deprecate(ctx context.Context, accession, reason string) error {
	return m.Called(ctx, accession, reason).Error(0)
}

func (m *mockAccessioningService) Merge(ctx context.Context, source, target, reason string) error {
	return m.Called(ctx, source, target, reason).Error(0)
}

// mockDatabaseService only implements the lookups the handlers use; the
// embedded interface panics on anything else.
type mockDatabaseService struct {
	services.DatabaseService[models.Document]
	mock.Mock
}

func (m *mockDatabaseService) FindAccession(ctx context.Context, accession string) (*services.History[models.Document], error) {
	args := m.Called(ctx, accession)
	if v := args.Get(0); v != nil {
		return v.(*services.History[models.Document]), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDatabaseService) FindAccessionVersion(ctx context.Context, accession string, version int) (*services.Accessioned[models.Document], error) {
	args := m.Called(ctx, accession, version)
	if v := args.Get(0); v != nil {
		return v.(*services.Accessioned[models.Document]), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDatabaseService) FindLifecycle(ctx context.Context, accession string) (*services.Lifecycle, error) {
	args := m.Called(ctx, accession)
	if v := args.Get(0); v != nil {
		return v.(*services.Lifecycle), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDatabaseService) FindMergedInto(ctx context.Context, target string) ([]services.MergeLink, error) {
	args := m.Called(ctx, target)
	if v := args.Get(0); v != nil {
		return v.([]services.MergeLink), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockBatchQueue struct {
	mock.Mock
}

func (m *mockBatchQueue) EnqueueBatch(ctx context.Context, docs []models.Document) (*queue.BatchInfo, error) {
	args := m.Called(ctx, docs)
	if v := args.Get(0); v != nil {
		return v.(*queue.BatchInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBatchQueue) GetBatch(ctx context.Context, id string) (*queue.BatchInfo, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*queue.BatchInfo), args.Error(1)
	}
	return nil, args.Error(1)
}
