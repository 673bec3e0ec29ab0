// Package generator assigns new accessions to content that storage has not
// seen before.
//
// A Generator never touches the accession store beyond optional read-only
// existence checks. The accession it proposes is only binding once the
// Database Service has committed the record; uniqueness under concurrency is
// enforced by storage.
package generator

import (
	"context"
	"fmt"
	"sort"

	appErr "github.com/accession-studio/engine/pkg/errors"
)

// Generator proposes one accession per distinct hash. The returned map is
// complete (every input hash has an accession) and injective (no accession
// is handed to two hashes). Failures are generation_failed errors and are not
// retried here.
type Generator interface {
	Generate(ctx context.Context, hashes []string) (map[string]string, error)
}

// ExistenceChecker reports which of the given accessions are already stored.
type ExistenceChecker interface {
	ExistingAccessions(ctx context.Context, accessions []string) ([]string, error)
}

// distinct returns hashes without duplicates, sorted so allocation order is
// stable for a given batch.
func distinct(hashes []string) []string {
	seen := make(map[string]struct{}, len(hashes))
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Validate checks that assigned covers every hash and never reuses an accession.
func Validate(hashes []string, assigned map[string]string) error {
	owner := make(map[string]string, len(assigned))
	for _, h := range hashes {
		acc, ok := assigned[h]
		if !ok || acc == "" {
			return appErr.CouldNotBeGenerated(fmt.Errorf("no accession generated for hash %q", h))
		}
		if prev, dup := owner[acc]; dup && prev != h {
			return appErr.CouldNotBeGenerated(fmt.Errorf("accession %q generated for hashes %q and %q", acc, prev, h))
		}
		owner[acc] = h
	}
	return nil
}
