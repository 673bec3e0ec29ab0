package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is the object type accessioned by the HTTP API and the worker:
// an arbitrary JSON object.
type Document map[string]any

// UnmarshalJSON keeps numbers as json.Number so integers beyond float64
// precision survive decoding and summarize to their exact literal.
func (d *Document) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	*d = m
	return nil
}

// SummarizeDocument returns a canonical JSON rendering of d. encoding/json
// sorts map keys at every level, so equal documents summarize identically
// regardless of the key order they were submitted in. Numbers keep the
// literal they were decoded from.
func SummarizeDocument(d Document) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("summarize document: %w", err)
	}
	return string(b), nil
}
