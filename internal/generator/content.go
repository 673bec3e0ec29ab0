package generator

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strconv"

	appErr "github.com/accession-studio/engine/pkg/errors"
)

var accessionEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Content derives the accession from the hash itself: prefix followed by the
// base32 encoding of sha256(salt:hash), truncated to length characters.
// Resubmitting the same content yields the same accession unless it is taken.
// When two hashes of a batch land on the same accession, or the accession is
// already stored, the hash is retried with the next salt. A hash that is still
// unresolved after maxAttempts salts fails the whole batch.
type Content struct {
	prefix      string
	length      int
	maxAttempts int
	existing    ExistenceChecker
}

type ContentOption func(*Content)

func WithContentPrefix(prefix string) ContentOption {
	return func(c *Content) { c.prefix = prefix }
}

// WithLength sets the number of encoded characters after the prefix (1..52).
func WithLength(n int) ContentOption {
	return func(c *Content) { c.length = n }
}

func WithMaxAttempts(n int) ContentOption {
	return func(c *Content) { c.maxAttempts = n }
}

// WithExistenceChecker lets the generator skip accessions storage already holds.
func WithExistenceChecker(checker ExistenceChecker) ContentOption {
	return func(c *Content) { c.existing = checker }
}

func NewContent(opts ...ContentOption) *Content {
	c := &Content{length: 10, maxAttempts: 5}
	for _, opt := range opts {
		opt(c)
	}
	if c.length < 1 || c.length > 52 {
		c.length = 10
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c
}

func (c *Content) Generate(ctx context.Context, hashes []string) (map[string]string, error) {
	all := distinct(hashes)
	out := make(map[string]string, len(all))
	taken := make(map[string]string, len(all))
	salt := make(map[string]int, len(all))

	pending := all
	for len(pending) > 0 {
		proposed := make(map[string]string, len(pending))
		candidates := make([]string, 0, len(pending))
		var retry []string
		for _, h := range pending {
			if salt[h] >= c.maxAttempts {
				return nil, appErr.CouldNotBeGenerated(fmt.Errorf("no free accession for hash %q after %d attempts", h, c.maxAttempts))
			}
			acc := c.derive(h, salt[h])
			if _, clash := taken[acc]; clash {
				salt[h]++
				retry = append(retry, h)
				continue
			}
			taken[acc] = h
			proposed[h] = acc
			candidates = append(candidates, acc)
		}

		stored, err := c.stored(ctx, candidates)
		if err != nil {
			return nil, err
		}
		for _, h := range pending {
			acc, ok := proposed[h]
			if !ok {
				continue
			}
			if _, exists := stored[acc]; exists {
				salt[h]++
				retry = append(retry, h)
				continue
			}
			out[h] = acc
		}
		pending = retry
	}

	if err := Validate(all, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Content) derive(hash string, salt int) string {
	sum := sha256.Sum256([]byte(strconv.Itoa(salt) + ":" + hash))
	return c.prefix + accessionEncoding.EncodeToString(sum[:])[:c.length]
}

func (c *Content) stored(ctx context.Context, accessions []string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	if c.existing == nil || len(accessions) == 0 {
		return out, nil
	}
	found, err := c.existing.ExistingAccessions(ctx, accessions)
	if err != nil {
		return nil, appErr.CouldNotBeGenerated(err)
	}
	for _, acc := range found {
		out[acc] = struct{}{}
	}
	return out, nil
}
