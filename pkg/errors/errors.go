package errors

import (
	"errors"
	"fmt"
)

// Code represents a stable error code for programmatic handling.
type Code string

const (
	CodeUnknown          Code = "unknown"
	CodeInvalid          Code = "invalid"
	CodeNotFound         Code = "not_found"
	CodeConflict         Code = "conflict"
	CodeInternal         Code = "internal"
	CodeUnavailable      Code = "unavailable"
	CodeAlreadyExists    Code = "already_exists"
	CodeDeprecated       Code = "deprecated"
	CodeMerged           Code = "merged"
	CodeGenerationFailed Code = "generation_failed"
)

// Meta keys attached by the accession constructors below.
const (
	MetaAccession  = "accession"
	MetaHash       = "hash"
	MetaMergedInto = "merged_into"
	MetaReason     = "reason"
	MetaVersion    = "version"
)

// AppError is a structured error type that carries a code, message, and optional metadata.
type AppError struct {
	Code    Code
	Message string
	Err     error
	Meta    map[string]any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *AppError) Unwrap() error { return e.Err }

// WithMeta attaches metadata to the error.
func (e *AppError) WithMeta(k string, v any) *AppError {
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	e.Meta[k] = v
	return e
}

// New creates a new AppError with code and message.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with code and message.
func Wrap(err error, code Code, message string) *AppError {
	if err == nil {
		return New(code, message)
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// IsCode checks if an error has the provided code (through unwrapping).
func IsCode(err error, code Code) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost AppError in the chain, or CodeUnknown.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// AccessionDoesNotExist reports an accession, or one of its versions, that has no stored record.
func AccessionDoesNotExist(accession string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("accession %q does not exist", accession)).
		WithMeta(MetaAccession, accession)
}

// AccessionVersionDoesNotExist reports a version outside the known range of an accession.
func AccessionVersionDoesNotExist(accession string, version int) *AppError {
	return New(CodeNotFound, fmt.Sprintf("accession %q has no version %d", accession, version)).
		WithMeta(MetaAccession, accession).
		WithMeta(MetaVersion, version)
}

// AccessionMerged reports an accession whose lineage was merged into target.
func AccessionMerged(accession, target string) *AppError {
	return New(CodeMerged, fmt.Sprintf("accession %q has been merged into %q", accession, target)).
		WithMeta(MetaAccession, accession).
		WithMeta(MetaMergedInto, target)
}

// AccessionDeprecated reports an accession that was retired.
func AccessionDeprecated(accession, reason string) *AppError {
	return New(CodeDeprecated, fmt.Sprintf("accession %q has been deprecated", accession)).
		WithMeta(MetaAccession, accession).
		WithMeta(MetaReason, reason)
}

// HashAlreadyExists reports content already held by an active record.
func HashAlreadyExists(hash string) *AppError {
	return New(CodeAlreadyExists, "hash already exists").WithMeta(MetaHash, hash)
}

// AccessionAlreadyExists reports an accession/version pair that is already stored.
func AccessionAlreadyExists(accession string) *AppError {
	return New(CodeAlreadyExists, "accession already exists").WithMeta(MetaAccession, accession)
}

// CouldNotBeGenerated reports an allocator or strategy failure.
func CouldNotBeGenerated(err error) *AppError {
	return Wrap(err, CodeGenerationFailed, "accession could not be generated")
}

// MergedInto returns the canonical accession carried by a merged-kind error.
func MergedInto(err error) (string, bool) {
	return metaString(err, CodeMerged, MetaMergedInto)
}

// DeprecationReason returns the reason carried by a deprecated-kind error.
func DeprecationReason(err error) (string, bool) {
	return metaString(err, CodeDeprecated, MetaReason)
}

// IsHashConflict reports whether err is a duplicate-content error.
func IsHashConflict(err error) bool {
	_, ok := metaString(err, CodeAlreadyExists, MetaHash)
	return ok
}

// IsAccessionConflict reports whether err is a duplicate accession error.
func IsAccessionConflict(err error) bool {
	_, ok := metaString(err, CodeAlreadyExists, MetaAccession)
	return ok
}

func metaString(err error, code Code, key string) (string, bool) {
	var ae *AppError
	if !errors.As(err, &ae) || ae.Code != code {
		return "", false
	}
	v, ok := ae.Meta[key].(string)
	return v, ok
}
