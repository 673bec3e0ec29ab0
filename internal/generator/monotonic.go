package generator

import (
	"context"
	"fmt"

	appErr "github.com/accession-studio/engine/pkg/errors"
)

// Monotonic formats numbers drawn from an Allocator as prefix + zero-padded
// digits, for example ACC0000000042. One number is requested per distinct hash.
type Monotonic struct {
	alloc  Allocator
	prefix string
	width  int
}

type MonotonicOption func(*Monotonic)

func WithPrefix(prefix string) MonotonicOption {
	return func(m *Monotonic) { m.prefix = prefix }
}

// WithWidth sets the minimum number of digits; shorter numbers are zero padded.
func WithWidth(width int) MonotonicOption {
	return func(m *Monotonic) { m.width = width }
}

func NewMonotonic(alloc Allocator, opts ...MonotonicOption) *Monotonic {
	m := &Monotonic{alloc: alloc, width: 10}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monotonic) Generate(ctx context.Context, hashes []string) (map[string]string, error) {
	pending := distinct(hashes)
	out := make(map[string]string, len(pending))
	if len(pending) == 0 {
		return out, nil
	}

	if block, ok := m.alloc.(BlockAllocator); ok {
		first, err := block.NextBlock(ctx, len(pending))
		if err != nil {
			return nil, appErr.CouldNotBeGenerated(err)
		}
		for i, h := range pending {
			out[h] = m.format(first + int64(i))
		}
	} else {
		for _, h := range pending {
			n, err := m.alloc.Next(ctx)
			if err != nil {
				return nil, appErr.CouldNotBeGenerated(err)
			}
			out[h] = m.format(n)
		}
	}

	if err := Validate(pending, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Monotonic) format(n int64) string {
	return fmt.Sprintf("%s%0*d", m.prefix, m.width, n)
}
