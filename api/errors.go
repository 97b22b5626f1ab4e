// Package api holds the row types of the course store and the error kinds
// shared by every stage of an import.
package api

import "errors"

var (
	// ErrFilesystem is returned when an expected file or directory is absent
	// or unreadable.
	ErrFilesystem = errors.New("filesystem error")
	// ErrDescriptorParse is returned for malformed XML or a missing required
	// attribute.
	ErrDescriptorParse = errors.New("descriptor parse error")
	// ErrAddressing is returned when a locator field is empty or contains
	// reserved characters.
	ErrAddressing = errors.New("addressing error")
	// ErrUniqueness is returned when a natural key, slug or asset path is
	// repeated.
	ErrUniqueness = errors.New("uniqueness violation")
	// ErrNotFound is returned by reads that match no row.
	ErrNotFound = errors.New("not found")
)
