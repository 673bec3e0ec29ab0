package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/accession-studio/engine/internal/generator"
	"github.com/accession-studio/engine/internal/models"
	"github.com/accession-studio/engine/internal/repository"
	"github.com/accession-studio/engine/pkg/database"
	appErr "github.com/accession-studio/engine/pkg/errors"
	"github.com/accession-studio/engine/pkg/hashing"
	"github.com/accession-studio/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Nop()
	os.Exit(m.Run())
}

func identity(s string) (string, error) { return s, nil }

type fixture struct {
	store   *repository.Store
	db      DatabaseService[string]
	svc     AccessioningService[string]
	metrics *Metrics
}

func newFixture(t *testing.T, gen generator.Generator, opts ...Option) *fixture {
	t.Helper()
	conn, err := database.Open(context.Background(), database.DriverSQLite, ":memory:", database.Options{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(conn))
	t.Cleanup(func() { _ = database.Close(conn) })

	store := repository.NewStore(conn)
	metrics := NewMetrics(nil)
	db := NewDatabaseService[string](store, metrics)
	if gen == nil {
		gen = generator.NewMonotonic(generator.NewCounter(0), generator.WithPrefix("T"))
	}
	opts = append([]Option{WithMetrics(metrics)}, opts...)
	return &fixture{
		store:   store,
		db:      db,
		svc:     NewAccessioningService[string](db, gen, identity, hashing.SHA1, opts...),
		metrics: metrics,
	}
}

func (f *fixture) recordCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.store.DB().Model(&models.AccessionRecord{}).Count(&n).Error)
	return n
}

func (f *fixture) seed(t *testing.T, accession, hash, data string) {
	t.Helper()
	_, err := f.db.Insert(context.Background(), []Accessioned[string]{{Accession: accession, Hash: hash, Data: data}})
	require.NoError(t, err)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, hashes []string) (map[string]string, error) {
	args := m.Called(ctx, hashes)
	if v := args.Get(0); v != nil {
		return v.(map[string]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestGetOrCreateDeduplicatesBatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.GetOrCreateAccessions(ctx, []string{"x", "y", "x"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "x", res[0].Data)
	assert.Equal(t, "y", res[1].Data)
	assert.NotEqual(t, res[0].Accession, res[1].Accession)
	assert.Equal(t, hashing.SHA1("x"), res[0].Hash)
	assert.Equal(t, 1, res[0].Version)
	assert.True(t, res[0].Active)

	byAcc := res.ByAccession()
	assert.Equal(t, "x", byAcc[res[0].Accession])
	assert.EqualValues(t, 2, f.recordCount(t))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.created))
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.GetOrCreateAccessions(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	second, err := f.svc.GetOrCreateAccessions(ctx, []string{"c", "b", "a"})
	require.NoError(t, err)

	assert.Equal(t, first.ByHash(), second.ByHash())
	assert.EqualValues(t, 3, f.recordCount(t))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.resolved))
}

func TestGetOrCreateMixesExistingAndNew(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.GetOrCreateAccessions(ctx, []string{"a"})
	require.NoError(t, err)

	res, err := f.svc.GetOrCreateAccessions(ctx, []string{"b", "a"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, first[0].Accession, res[1].Accession)
	assert.NotEqual(t, first[0].Accession, res[0].Accession)
}

func TestGetOrCreateEmptyBatch(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.svc.GetOrCreateAccessions(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestGetOrCreateRejectsOversizedBatch(t *testing.T) {
	f := newFixture(t, nil, WithMaxBatchSize(2))
	_, err := f.svc.GetOrCreateAccessions(context.Background(), []string{"a", "b", "c"})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
}

func TestGetAccessionsNeverCreates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.GetOrCreateAccessions(ctx, []string{"known"})
	require.NoError(t, err)

	res, err := f.svc.GetAccessions(ctx, []string{"unknown", "known", "known"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, created[0].Accession, res[0].Accession)
	assert.EqualValues(t, 1, f.recordCount(t))
}

func TestGetByAccessionsOmitsRetiredLineages(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.GetOrCreateAccessions(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	accs := res.Accessions()

	require.NoError(t, f.svc.Deprecate(ctx, accs[0], "retired"))
	require.NoError(t, f.svc.Merge(ctx, accs[1], accs[2], "duplicate"))

	found, err := f.svc.GetByAccessions(ctx, append(accs, "missing"))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, accs[2], found[0].Accession)
	assert.Equal(t, "c", found[0].Data)
}

func TestPatchAppendsVersion(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, "a1", "h1", "first")

	patched, err := f.db.Patch(ctx, "a1", "h2", "second")
	require.NoError(t, err)
	assert.Equal(t, 2, patched.Version)
	assert.True(t, patched.Active)

	history, err := f.db.FindAccession(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, history.Versions, 2)
	assert.Equal(t, 1, history.Versions[0].Version)
	assert.False(t, history.Versions[0].Active)
	assert.Equal(t, "h1", history.Versions[0].Hash)
	assert.Equal(t, 2, history.Latest().Version)
	assert.Equal(t, "h2", history.Latest().Hash)
	assert.Equal(t, "second", history.Latest().Data)

	// the old content is no longer held by any active record
	found, err := f.db.FindAccessionsByHash(ctx, []string{"h1", "h2"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "h2", found[0].Hash)
}

func TestPatchVersionsStayContiguous(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, "a1", "h0", "v")

	for i := 1; i <= 4; i++ {
		_, err := f.db.Patch(ctx, "a1", fmt.Sprintf("h%d", i), "v")
		require.NoError(t, err)
	}
	_, err := f.db.Update(ctx, "a1", "h-fixed", "fixed", 2)
	require.NoError(t, err)
	// reverting to earlier content is a patch like any other
	_, err = f.db.Patch(ctx, "a1", "h0", "v")
	require.NoError(t, err)

	history, err := f.db.FindAccession(ctx, "a1")
	require.NoError(t, err)
	for i, v := range history.Versions {
		assert.Equal(t, i+1, v.Version)
		assert.Equal(t, i == len(history.Versions)-1, v.Active)
	}
	assert.Len(t, history.Versions, 6)
}

func TestPatchErrors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, "a1", "h1", "one")
	f.seed(t, "a2", "h2", "two")

	_, err := f.db.Patch(ctx, "missing", "h9", "x")
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	_, err = f.db.Patch(ctx, "a1", "h2", "two")
	require.Error(t, err)
	assert.True(t, appErr.IsHashConflict(err))

	// the failed patch rolled back completely
	history, err := f.db.FindAccession(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, history.Versions, 1)
	assert.True(t, history.Versions[0].Active)
}

func TestUpdateRewritesVersionInPlace(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, "a1", "h1", "first")
	_, err := f.db.Patch(ctx, "a1", "h2", "second")
	require.NoError(t, err)

	updated, err := f.db.Update(ctx, "a1", "h1-fixed", "first-fixed", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Version)
	assert.False(t, updated.Active)

	history, err := f.db.FindAccession(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, history.Versions, 2)
	assert.Equal(t, "h1-fixed", history.Versions[0].Hash)
	assert.Equal(t, "first-fixed", history.Versions[0].Data)
	assert.True(t, history.Versions[1].Active)

	_, err = f.db.Update(ctx, "a1", "h3", "x", 3)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
	_, err = f.db.Update(ctx, "a1", "h3", "x", 0)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
	_, err = f.db.Update(ctx, "missing", "h3", "x", 1)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestUpdateRejectsActiveContentOfAnotherAccession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, "a1", "h1", "one")
	f.seed(t, "a2", "h2", "two")

	_, err := f.db.Update(ctx, "a1", "h2", "two", 1)
	assert.True(t, appErr.IsHashConflict(err))
}

func TestDeprecate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.GetOrCreateAccessions(ctx, []string{"x"})
	require.NoError(t, err)
	acc := res[0].Accession

	require.NoError(t, f.svc.Deprecate(ctx, acc, "withdrawn"))

	_, err = f.db.FindAccession(ctx, acc)
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeDeprecated))
	reason, ok := appErr.DeprecationReason(err)
	require.True(t, ok)
	assert.Equal(t, "withdrawn", reason)

	_, err = f.db.FindAccessionVersion(ctx, acc, 1)
	assert.True(t, appErr.IsCode(err, appErr.CodeDeprecated))

	lc, err := f.db.FindLifecycle(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, models.StateDeprecated, lc.State)
	assert.Equal(t, "withdrawn", lc.Reason)
	assert.NotNil(t, lc.ChangedAt)

	assert.True(t, appErr.IsCode(f.svc.Deprecate(ctx, acc, "again"), appErr.CodeDeprecated))
	_, err = f.svc.Patch(ctx, acc, "y")
	assert.True(t, appErr.IsCode(err, appErr.CodeDeprecated))
	assert.True(t, appErr.IsCode(f.svc.Deprecate(ctx, "missing", "r"), appErr.CodeNotFound))

	// the retired content can be accessioned again
	again, err := f.svc.GetOrCreateAccessions(ctx, []string{"x"})
	require.NoError(t, err)
	assert.NotEqual(t, acc, again[0].Accession)
}

func TestMerge(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, "a1", "h1", "one")
	f.seed(t, "a2", "h2", "two")
	f.seed(t, "a3", "h3", "three")

	require.NoError(t, f.db.Merge(ctx, "a1", "a2", "duplicate submission"))

	_, err := f.db.FindAccession(ctx, "a1")
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeMerged))
	target, ok := appErr.MergedInto(err)
	require.True(t, ok)
	assert.Equal(t, "a2", target)

	// no cycles and no chains
	err = f.db.Merge(ctx, "a2", "a1", "reverse")
	assert.True(t, appErr.IsCode(err, appErr.CodeMerged))
	err = f.db.Merge(ctx, "a3", "a1", "chain")
	assert.True(t, appErr.IsCode(err, appErr.CodeMerged))
	err = f.db.Merge(ctx, "a1", "a3", "twice")
	assert.True(t, appErr.IsCode(err, appErr.CodeMerged))

	assert.True(t, appErr.IsCode(f.db.Merge(ctx, "a3", "a3", "self"), appErr.CodeInvalid))
	assert.True(t, appErr.IsCode(f.db.Merge(ctx, "a3", "missing", "r"), appErr.CodeNotFound))
	assert.True(t, appErr.IsCode(f.db.Merge(ctx, "missing", "a3", "r"), appErr.CodeNotFound))

	require.NoError(t, f.db.Merge(ctx, "a3", "a2", "duplicate"))
	links, err := f.db.FindMergedInto(ctx, "a2")
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "a1", links[0].Source)
	assert.Equal(t, "duplicate submission", links[0].Reason)

	lc, err := f.db.FindLifecycle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StateMerged, lc.State)
	assert.Equal(t, "a2", lc.MergedInto)

	lc, err = f.db.FindLifecycle(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, models.StateActive, lc.State)
	assert.Nil(t, lc.ChangedAt)

	_, err = f.db.FindLifecycle(ctx, "missing")
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.operations.WithLabelValues("merge", string(appErr.CodeMerged))))
}

func TestFindAccessionVersion(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, "a1", "h1", "one")
	_, err := f.db.Patch(ctx, "a1", "h2", "two")
	require.NoError(t, err)

	v1, err := f.db.FindAccessionVersion(ctx, "a1", 1)
	require.NoError(t, err)
	assert.Equal(t, "one", v1.Data)
	assert.False(t, v1.Active)

	_, err = f.db.FindAccessionVersion(ctx, "a1", 3)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
	_, err = f.db.FindAccessionVersion(ctx, "nope", 1)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestInsertValidatesBatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.db.Insert(ctx, []Accessioned[string]{{Accession: "a1", Hash: "h1"}, {Accession: "a1", Hash: "h2"}})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	_, err = f.db.Insert(ctx, []Accessioned[string]{{Accession: "a1", Hash: "h1"}, {Accession: "a2", Hash: "h1"}})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	_, err = f.db.Insert(ctx, []Accessioned[string]{{Accession: "", Hash: "h1"}})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))

	f.seed(t, "a1", "h1", "one")
	_, err = f.db.Insert(ctx, []Accessioned[string]{{Accession: "a2", Hash: "h1"}})
	assert.True(t, appErr.IsHashConflict(err))
	_, err = f.db.Insert(ctx, []Accessioned[string]{{Accession: "a1", Hash: "h9"}})
	assert.True(t, appErr.IsAccessionConflict(err))
	assert.EqualValues(t, 1, f.recordCount(t))
}

func TestGenerationFailureFailsWholeBatch(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(nil, appErr.CouldNotBeGenerated(errors.New("allocator down")))
	f := newFixture(t, gen)
	ctx := context.Background()

	_, err := f.svc.GetOrCreateAccessions(ctx, []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeGenerationFailed))
	assert.EqualValues(t, 0, f.recordCount(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.generationFailure))
}

func TestIncompleteGenerationIsRejected(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(map[string]string{}, nil)
	f := newFixture(t, gen)

	_, err := f.svc.GetOrCreateAccessions(context.Background(), []string{"a"})
	assert.True(t, appErr.IsCode(err, appErr.CodeGenerationFailed))
}

func TestAccessionCollisionIsRegenerated(t *testing.T) {
	f := newFixture(t, generator.NewMonotonic(generator.NewCounter(0), generator.WithPrefix("T")))
	// an accession handed out before the counter was reset
	f.seed(t, "T0000000001", "elsewhere", "old")

	res, err := f.svc.GetOrCreateAccessions(context.Background(), []string{"fresh"})
	require.NoError(t, err)
	assert.Equal(t, "T0000000002", res[0].Accession)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.raceRecoveries))
}

// staleLookup hides the given hashes from lookups while armed, emulating a
// concurrent writer that commits between lookup and insert.
type staleLookup struct {
	DatabaseService[string]
	onLookup func()
	misses   int
}

func (s *staleLookup) FindAccessionsByHash(ctx context.Context, hashes []string) ([]Accessioned[string], error) {
	if s.misses > 0 {
		s.misses--
		if s.onLookup != nil {
			s.onLookup()
		}
		return nil, nil
	}
	return s.DatabaseService.FindAccessionsByHash(ctx, hashes)
}

func TestRaceIsRecoveredToWinner(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	hash := hashing.SHA1("contended")

	stale := &staleLookup{DatabaseService: f.db, misses: 1}
	stale.onLookup = func() { f.seed(t, "WINNER", hash, "contended") }
	svc := NewAccessioningService[string](stale, generator.NewMonotonic(generator.NewCounter(0)), identity, hashing.SHA1, WithMetrics(f.metrics))

	res, err := svc.GetOrCreateAccessions(ctx, []string{"contended", "other"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "WINNER", res[0].Accession)
	assert.Equal(t, "other", res[1].Data)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.raceRecoveries))
	assert.EqualValues(t, 2, f.recordCount(t))
}

func TestRaceRetriesAreBounded(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, "WINNER", hashing.SHA1("contended"), "contended")

	stale := &staleLookup{DatabaseService: f.db, misses: 100}
	svc := NewAccessioningService[string](stale, generator.NewMonotonic(generator.NewCounter(0)), identity, hashing.SHA1, WithMaxRaceRetries(2))

	_, err := svc.GetOrCreateAccessions(ctx, []string{"contended"})
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))
	assert.Equal(t, 97, stale.misses)
}

func TestConcurrentIdenticalSubmissionsShareOneAccession(t *testing.T) {
	f := newFixture(t, nil)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	ctx := context.Background()

	const callers = 16
	results := make([]Result[string], callers)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			res, err := f.svc.GetOrCreateAccessions(gctx, []string{"same", fmt.Sprintf("own-%d", i)})
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	shared := results[0][0].Accession
	for _, res := range results {
		assert.Equal(t, shared, res[0].Accession)
	}
	assert.EqualValues(t, callers+1, f.recordCount(t))
}

func TestMergedLineageRejectsEveryMutation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, "a1", "h1", "one")
	f.seed(t, "a2", "h2", "two")
	require.NoError(t, f.db.Merge(ctx, "a1", "a2", "duplicate"))

	err := f.svc.Deprecate(ctx, "a1", "withdrawn")
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeMerged))
	target, ok := appErr.MergedInto(err)
	require.True(t, ok)
	assert.Equal(t, "a2", target)

	_, err = f.svc.Patch(ctx, "a1", "new")
	assert.True(t, appErr.IsCode(err, appErr.CodeMerged))
	target, ok = appErr.MergedInto(err)
	require.True(t, ok)
	assert.Equal(t, "a2", target)

	_, err = f.svc.Update(ctx, "a1", 1, "fixed")
	assert.True(t, appErr.IsCode(err, appErr.CodeMerged))
	target, ok = appErr.MergedInto(err)
	require.True(t, ok)
	assert.Equal(t, "a2", target)

	// nothing was written to the merged lineage
	assert.Equal(t, int64(2), f.recordCount(t))
}

func TestDeprecatedLineageRejectsUpdate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, "a1", "h1", "one")
	require.NoError(t, f.db.Deprecate(ctx, "a1", "withdrawn"))

	_, err := f.svc.Update(ctx, "a1", 1, "fixed")
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeDeprecated))
	reason, ok := appErr.DeprecationReason(err)
	require.True(t, ok)
	assert.Equal(t, "withdrawn", reason)

	err = f.db.Merge(ctx, "a1", "a1-other", "late")
	assert.True(t, appErr.IsCode(err, appErr.CodeDeprecated))
}

func TestGetByAccessionsKeepsRequestOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.seed(t, "b", "h1", "one")
	f.seed(t, "a", "h2", "two")
	f.seed(t, "c", "h3", "three")

	found, err := f.svc.GetByAccessions(ctx, []string{"c", "missing", "a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, found.Accessions())
}

func TestDocumentsWithLargeIntegersGetDistinctAccessions(t *testing.T) {
	conn, err := database.Open(context.Background(), database.DriverSQLite, ":memory:", database.Options{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(conn))
	t.Cleanup(func() { _ = database.Close(conn) })

	db := NewDatabaseService[models.Document](repository.NewStore(conn), nil)
	svc := NewAccessioningService[models.Document](db,
		generator.NewMonotonic(generator.NewCounter(0), generator.WithPrefix("D")),
		models.SummarizeDocument, hashing.SHA1)
	ctx := context.Background()

	var docs []models.Document
	require.NoError(t, json.Unmarshal([]byte(`[{"id":9007199254740993},{"id":9007199254740992}]`), &docs))

	res, err := svc.GetOrCreateAccessions(ctx, docs)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.NotEqual(t, res[0].Accession, res[1].Accession)
	assert.NotEqual(t, res[0].Hash, res[1].Hash)

	history, err := db.FindAccession(ctx, res[0].Accession)
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), history.Latest().Data["id"])

	again, err := svc.GetAccessions(ctx, docs[1:])
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, res[1].Accession, again[0].Accession)

	_, err = svc.GetOrCreateAccessions(ctx, []models.Document{{"x": math.Inf(1)}})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	_, err = svc.GetAccessions(ctx, []models.Document{{"x": math.NaN()}})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	_, err = svc.Patch(ctx, res[0].Accession, models.Document{"x": math.Inf(-1)})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
}
