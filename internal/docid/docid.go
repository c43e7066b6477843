// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package docid parses document identifiers of the form
// owner:slug[:rest], where rest is a chapter id or a reserved suffix such as
// "elements" for the outline tree.
package docid

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// MaxLength bounds the length of a document identifier.
const MaxLength = 512

// ElementsSuffix names the document holding a project's outline tree.
const ElementsSuffix = "elements"

// ErrMalformed is returned for identifiers that do not have a non-empty
// owner and slug.
var ErrMalformed = errors.New("malformed document id")

// ID is a parsed document identifier.
type ID struct {
	raw   string
	Owner string
	Slug  string
	Rest  string
}

// Parse validates and splits s.
func Parse(s string) (ID, error) {
	if s == "" {
		return ID{}, fmt.Errorf("%w: empty", ErrMalformed)
	}
	if len(s) > MaxLength {
		return ID{}, fmt.Errorf("%w: longer than %d bytes", ErrMalformed, MaxLength)
	}
	if strings.IndexFunc(s, func(r rune) bool { return unicode.IsControl(r) || r == unicode.ReplacementChar }) >= 0 {
		return ID{}, fmt.Errorf("%w: contains control characters", ErrMalformed)
	}

	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return ID{}, fmt.Errorf("%w: %q needs owner:slug", ErrMalformed, s)
	}
	id := ID{raw: s, Owner: parts[0], Slug: parts[1]}
	if len(parts) == 3 {
		if parts[2] == "" {
			return ID{}, fmt.Errorf("%w: %q has an empty document segment", ErrMalformed, s)
		}
		id.Rest = parts[2]
	}
	return id, nil
}

// Valid reports whether s parses.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// String returns the identifier as given.
func (id ID) String() string {
	return id.raw
}

// ProjectKey returns the owner:slug key addressing the project actor.
func (id ID) ProjectKey() string {
	return id.Owner + ":" + id.Slug
}

// IsElements reports whether the identifier names the outline tree.
func (id ID) IsElements() bool {
	return id.Rest == ElementsSuffix
}
