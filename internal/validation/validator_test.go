// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package validation

import (
	"strings"
	"sync"
	"testing"
)

type upgradeRequest struct {
	DocumentID string `query:"documentId" validate:"required,documentid"`
}

type statsRequest struct {
	Owner string `url:"owner" validate:"required,slug"`
	Slug  string `url:"slug" validate:"required,slug"`
}

func TestValidateStruct_DocumentID(t *testing.T) {
	tests := []struct {
		in      string
		wantTag string
	}{
		{"alice:novel", ""},
		{"alice:novel:ch1", ""},
		{"alice:novel:elements", ""},
		{"", "required"},
		{"alice", "documentid"},
		{":novel", "documentid"},
		{"alice:novel:", "documentid"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := ValidateStruct(&upgradeRequest{DocumentID: tt.in})
			if tt.wantTag == "" {
				if err != nil {
					t.Fatalf("ValidateStruct() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateStruct() expected error")
			}
			fe := err.Errors()[0]
			if fe.Tag() != tt.wantTag || fe.Field() != "documentId" {
				t.Errorf("error = field %q tag %q, want documentId/%s", fe.Field(), fe.Tag(), tt.wantTag)
			}
			apiErr := err.ToAPIError()
			if apiErr.Code != "VALIDATION_ERROR" || !strings.Contains(apiErr.Message, "documentId") {
				t.Errorf("ToAPIError() = %+v", apiErr)
			}
		})
	}
}

func TestValidateStruct_MultipleErrors(t *testing.T) {
	err := ValidateStruct(&statsRequest{Owner: "a:b", Slug: ""})
	if err == nil {
		t.Fatal("ValidateStruct() expected error")
	}
	if len(err.Errors()) != 2 {
		t.Fatalf("Errors() = %d, want 2", len(err.Errors()))
	}
	apiErr := err.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 2 {
		t.Fatalf("Details = %v", apiErr.Details)
	}
	if fields[0]["field"] != "owner" || fields[1]["field"] != "slug" {
		t.Errorf("fields = %v", fields)
	}
}

func TestGetValidator_Singleton(t *testing.T) {
	var wg sync.WaitGroup
	results := make(chan interface{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- GetValidator()
		}()
	}
	wg.Wait()
	close(results)

	first := GetValidator()
	for v := range results {
		if v != first {
			t.Fatal("GetValidator() returned different instances")
		}
	}
}
