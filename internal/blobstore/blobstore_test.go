// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package blobstore

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":          "report.pdf",
		"../../etc/passwd":    "passwd",
		"my file (final).docx": "my_file_final_.docx",
		"":                    "upload",
	}
	for in, want := range cases {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildKey_Namespacing(t *testing.T) {
	key := BuildKey("acme", "report.pdf")
	if !strings.HasPrefix(key, "acme/") {
		t.Errorf("expected key to start with tenant prefix, got %q", key)
	}
	if !strings.HasSuffix(key, "/report.pdf") {
		t.Errorf("expected key to end with sanitized filename, got %q", key)
	}

	key2 := BuildKey("acme", "report.pdf")
	if key == key2 {
		t.Error("expected distinct keys for repeated uploads of the same filename")
	}
}

func TestValidate(t *testing.T) {
	allowed := map[string]bool{"application/pdf": true}

	if err := Validate(10, 100, "application/pdf", allowed); err != nil {
		t.Errorf("expected valid upload to pass, got %v", err)
	}
	if err := Validate(200, 100, "application/pdf", allowed); err == nil {
		t.Error("expected oversized payload to be rejected")
	}
	if err := Validate(10, 100, "application/zip", allowed); err == nil {
		t.Error("expected disallowed content type to be rejected")
	}
}

func TestMemoryStore_PutGetPresignedDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	key, err := store.Put(ctx, "acme", "notes.txt", "text/plain", []byte("hello"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	url, err := store.GetPresigned(ctx, key, 5*time.Minute)
	if err != nil {
		t.Fatalf("GetPresigned failed: %v", err)
	}
	if !strings.Contains(url, key) {
		t.Errorf("expected presigned url to reference key %q, got %q", key, url)
	}

	data, err := store.Download(ctx, key)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected downloaded bytes %q, got %q", "hello", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.GetPresigned(ctx, key, time.Minute); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := store.Download(ctx, key); err != ErrNotFound {
		t.Errorf("expected ErrNotFound from Download after delete, got %v", err)
	}

	// deleting an absent key is not an error
	if err := store.Delete(ctx, "missing/key/x"); err != nil {
		t.Errorf("expected deleting absent key to be a no-op, got %v", err)
	}
}
