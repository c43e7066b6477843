// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package docid

import (
	"errors"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		owner   string
		slug    string
		rest    string
		wantErr bool
	}{
		{in: "alice:novel", owner: "alice", slug: "novel"},
		{in: "alice:novel:ch1", owner: "alice", slug: "novel", rest: "ch1"},
		{in: "alice:novel:elements", owner: "alice", slug: "novel", rest: "elements"},
		{in: "alice:novel:part:2", owner: "alice", slug: "novel", rest: "part:2"},
		{in: "", wantErr: true},
		{in: "alice", wantErr: true},
		{in: ":novel", wantErr: true},
		{in: "alice:", wantErr: true},
		{in: "alice:novel:", wantErr: true},
		{in: "alice:nov\x00el", wantErr: true},
		{in: "alice:" + strings.Repeat("x", MaxLength), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, err := Parse(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("Parse(%q) error = %v, want ErrMalformed", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.in, err)
			}
			if id.Owner != tt.owner || id.Slug != tt.slug || id.Rest != tt.rest {
				t.Errorf("Parse(%q) = %+v", tt.in, id)
			}
			if id.String() != tt.in {
				t.Errorf("String() = %q, want %q", id.String(), tt.in)
			}
			if id.ProjectKey() != tt.owner+":"+tt.slug {
				t.Errorf("ProjectKey() = %q", id.ProjectKey())
			}
		})
	}
}

func TestIsElements(t *testing.T) {
	id, _ := Parse("alice:novel:elements")
	if !id.IsElements() {
		t.Error("IsElements() = false for outline document")
	}
	id, _ = Parse("alice:novel:ch1")
	if id.IsElements() {
		t.Error("IsElements() = true for chapter")
	}
}
