// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package blobstore

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Store is the blob storage adapter contract §4.1 names: Put, a
// presigned download URL, and Delete. Keys are namespaced
// {tenant}/{uuid}/{sanitized_filename} so a tenant can never collide
// with or enumerate another tenant's objects by key.
type Store interface {
	Put(ctx context.Context, tenant, filename string, contentType string, data []byte) (key string, err error)
	GetPresigned(ctx context.Context, key string, ttl time.Duration) (url string, err error)
	Download(ctx context.Context, key string) (data []byte, err error)
	Delete(ctx context.Context, key string) error
}

// DefaultAllowedTypes is the set of content types the upload handler
// accepts, matching the extractor's dispatch set plus the supplemental
// formats it normalizes (§4.2).
var DefaultAllowedTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain":       true,
	"text/markdown":    true,
	"text/csv":         true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"text/html":        true,
	"message/rfc822":   true,
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeFilename strips characters unsafe in an object key, collapsing
// runs of them to a single underscore.
func SanitizeFilename(name string) string {
	clean := unsafeFilenameChars.ReplaceAllString(path.Base(name), "_")
	if clean == "" || clean == "." {
		clean = "upload"
	}
	return clean
}

// BuildKey constructs the {tenant}/{uuid}/{sanitized_filename} layout
// §4.1 specifies.
func BuildKey(tenant, filename string) string {
	return fmt.Sprintf("%s/%s/%s", tenant, uuid.New().String(), SanitizeFilename(filename))
}

// ErrTooLarge is returned when a payload exceeds the configured maximum.
type ErrTooLarge struct {
	Size, Max int64
}

func (e *ErrTooLarge) Error() string {
	return fmt.Sprintf("blobstore: payload %d bytes exceeds max %d bytes", e.Size, e.Max)
}

// ErrUnsupportedType is returned when a content type is outside the
// allow-list.
type ErrUnsupportedType struct {
	ContentType string
}

func (e *ErrUnsupportedType) Error() string {
	return fmt.Sprintf("blobstore: content type %q is not allowed", e.ContentType)
}

// ErrNotFound is returned when GetPresigned targets a missing object —
// fatal for the caller per §4.1, never retried.
var ErrNotFound = fmt.Errorf("blobstore: object not found")

// Validate checks size and content type against the configured limits
// before a Put is attempted.
func Validate(size int64, maxSize int64, contentType string, allowed map[string]bool) error {
	if size > maxSize {
		return &ErrTooLarge{Size: size, Max: maxSize}
	}
	if allowed != nil && !allowed[contentType] {
		return &ErrUnsupportedType{ContentType: contentType}
	}
	return nil
}
