package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/accession-studio/engine/internal/generator"
	appErr "github.com/accession-studio/engine/pkg/errors"
	"github.com/accession-studio/engine/pkg/hashing"
	"github.com/accession-studio/engine/pkg/logger"
)

// AccessioningService turns batches of objects into accessions.
type AccessioningService[M any] interface {
	// GetOrCreateAccessions returns one entry per distinct content in objects,
	// creating accessions for content storage has not seen. Identical content
	// submitted concurrently resolves to a single accession.
	GetOrCreateAccessions(ctx context.Context, objects []M) (Result[M], error)
	// GetAccessions looks objects up by content without creating anything.
	GetAccessions(ctx context.Context, objects []M) (Result[M], error)
	// GetByAccessions returns the active version of each accession. Merged and
	// deprecated accessions are omitted.
	GetByAccessions(ctx context.Context, accessions []string) (Result[M], error)

	Patch(ctx context.Context, accession string, object M) (*Accessioned[M], error)
	Update(ctx context.Context, accession string, version int, object M) (*Accessioned[M], error)
	Deprecate(ctx context.Context, accession, reason string) error
	Merge(ctx context.Context, source, target, reason string) error
}

// SummaryFunc renders the content of an object that identifies it. Objects
// with equal summaries are the same object. An object that cannot be
// summarized is rejected.
type SummaryFunc[M any] func(M) (string, error)

type accessioningService[M any] struct {
	db             DatabaseService[M]
	generator      generator.Generator
	summary        SummaryFunc[M]
	hash           hashing.Func
	metrics        *Metrics
	maxRaceRetries int
	maxBatchSize   int
}

// Option configures an AccessioningService.
type Option func(*serviceOptions)

type serviceOptions struct {
	metrics        *Metrics
	maxRaceRetries int
	maxBatchSize   int
}

func WithMetrics(m *Metrics) Option {
	return func(o *serviceOptions) { o.metrics = m }
}

// WithMaxRaceRetries bounds how often a batch is re-resolved after storage
// rejected its insert because of a concurrent writer.
func WithMaxRaceRetries(n int) Option {
	return func(o *serviceOptions) { o.maxRaceRetries = n }
}

// WithMaxBatchSize rejects batches with more objects than n. Zero disables the check.
func WithMaxBatchSize(n int) Option {
	return func(o *serviceOptions) { o.maxBatchSize = n }
}

func NewAccessioningService[M any](db DatabaseService[M], gen generator.Generator, summary SummaryFunc[M], hash hashing.Func, opts ...Option) AccessioningService[M] {
	o := serviceOptions{maxRaceRetries: 3}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}
	if hash == nil {
		hash = hashing.SHA1
	}
	return &accessioningService[M]{
		db:             db,
		generator:      gen,
		summary:        summary,
		hash:           hash,
		metrics:        o.metrics,
		maxRaceRetries: o.maxRaceRetries,
		maxBatchSize:   o.maxBatchSize,
	}
}

// Ensure interfaces are satisfied at compile time
var _ AccessioningService[map[string]any] = (*accessioningService[map[string]any])(nil)

// hashedBatch is a batch reduced to its distinct contents.
type hashedBatch[M any] struct {
	order   []string
	objects map[string]M
}

func (s *accessioningService[M]) hashAll(objects []M) (hashedBatch[M], error) {
	if s.maxBatchSize > 0 && len(objects) > s.maxBatchSize {
		return hashedBatch[M]{}, appErr.New(appErr.CodeInvalid, fmt.Sprintf("batch of %d objects exceeds limit of %d", len(objects), s.maxBatchSize))
	}
	b := hashedBatch[M]{objects: make(map[string]M, len(objects))}
	for _, obj := range objects {
		h, err := s.hashOf(obj)
		if err != nil {
			return hashedBatch[M]{}, err
		}
		if _, seen := b.objects[h]; seen {
			continue
		}
		b.objects[h] = obj
		b.order = append(b.order, h)
	}
	return b, nil
}

func (s *accessioningService[M]) hashOf(obj M) (string, error) {
	summary, err := s.summary(obj)
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeInvalid, "object cannot be summarized")
	}
	return s.hash(summary), nil
}

func (s *accessioningService[M]) GetOrCreateAccessions(ctx context.Context, objects []M) (Result[M], error) {
	start := time.Now()
	defer func() { s.metrics.batchDuration.Observe(time.Since(start).Seconds()) }()

	batch, err := s.hashAll(objects)
	if err != nil {
		return nil, err
	}
	logger.L().Info("get or create accessions", zap.Int("objects", len(objects)), zap.Int("distinct", len(batch.order)))

	resolved := make(map[string]Accessioned[M], len(batch.order))
	pending := batch.order
	for attempt := 0; len(pending) > 0; attempt++ {
		existing, err := s.db.FindAccessionsByHash(ctx, pending)
		if err != nil {
			return nil, err
		}
		for _, a := range existing {
			resolved[a.Hash] = a
		}
		s.metrics.resolved.Add(float64(len(existing)))

		novel := make([]string, 0, len(pending))
		for _, h := range pending {
			if _, ok := resolved[h]; !ok {
				novel = append(novel, h)
			}
		}
		if len(novel) == 0 {
			break
		}

		created, err := s.create(ctx, batch, novel)
		if err == nil {
			for _, a := range created {
				resolved[a.Hash] = a
			}
			s.metrics.created.Add(float64(len(created)))
			break
		}
		if !isRace(err) {
			return nil, err
		}
		if attempt >= s.maxRaceRetries {
			return nil, appErr.Wrap(err, appErr.CodeConflict, fmt.Sprintf("batch still contended after %d retries", attempt))
		}
		s.metrics.raceRecoveries.Inc()
		logger.L().Warn("accession insert lost a race, re-resolving",
			zap.Int("attempt", attempt+1),
			zap.Int("novel", len(novel)),
			zap.Error(err))
		pending = novel
	}

	out := make(Result[M], 0, len(batch.order))
	for _, h := range batch.order {
		out = append(out, resolved[h])
	}
	return out, nil
}

func (s *accessioningService[M]) create(ctx context.Context, batch hashedBatch[M], novel []string) ([]Accessioned[M], error) {
	assigned, err := s.generator.Generate(ctx, novel)
	if err == nil {
		err = generator.Validate(novel, assigned)
	}
	if err != nil {
		s.metrics.generationFailure.Inc()
		if !appErr.IsCode(err, appErr.CodeGenerationFailed) {
			err = appErr.CouldNotBeGenerated(err)
		}
		return nil, err
	}

	entries := make([]Accessioned[M], 0, len(novel))
	for _, h := range novel {
		entries = append(entries, Accessioned[M]{Accession: assigned[h], Hash: h, Data: batch.objects[h]})
	}
	return s.db.Insert(ctx, entries)
}

// isRace reports storage rejections caused by a concurrent writer: the content
// or the generated accession got taken, or the transaction was not serializable.
func isRace(err error) bool {
	return appErr.IsHashConflict(err) || appErr.IsAccessionConflict(err) || appErr.IsCode(err, appErr.CodeConflict)
}

func (s *accessioningService[M]) GetAccessions(ctx context.Context, objects []M) (Result[M], error) {
	batch, err := s.hashAll(objects)
	if err != nil {
		return nil, err
	}
	existing, err := s.db.FindAccessionsByHash(ctx, batch.order)
	if err != nil {
		return nil, err
	}
	byHash := make(map[string]Accessioned[M], len(existing))
	for _, a := range existing {
		byHash[a.Hash] = a
	}
	out := make(Result[M], 0, len(existing))
	for _, h := range batch.order {
		if a, ok := byHash[h]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *accessioningService[M]) GetByAccessions(ctx context.Context, accessions []string) (Result[M], error) {
	found, err := s.db.FindAllAccessions(ctx, accessions)
	if err != nil {
		return nil, err
	}
	byAccession := make(map[string]Accessioned[M], len(found))
	for _, a := range found {
		byAccession[a.Accession] = a
	}
	out := make(Result[M], 0, len(found))
	for _, acc := range accessions {
		a, ok := byAccession[acc]
		if !ok {
			continue
		}
		out = append(out, a)
		delete(byAccession, acc)
	}
	return out, nil
}

func (s *accessioningService[M]) Patch(ctx context.Context, accession string, object M) (*Accessioned[M], error) {
	h, err := s.hashOf(object)
	if err != nil {
		return nil, err
	}
	return s.db.Patch(ctx, accession, h, object)
}

func (s *accessioningService[M]) Update(ctx context.Context, accession string, version int, object M) (*Accessioned[M], error) {
	h, err := s.hashOf(object)
	if err != nil {
		return nil, err
	}
	return s.db.Update(ctx, accession, h, object, version)
}

func (s *accessioningService[M]) Deprecate(ctx context.Context, accession, reason string) error {
	return s.db.Deprecate(ctx, accession, reason)
}

func (s *accessioningService[M]) Merge(ctx context.Context, source, target, reason string) error {
	return s.db.Merge(ctx, source, target, reason)
}
