// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extract

import (
	"context"
	"strings"
	"unicode/utf8"
)

// extractText decodes plain text (.txt, .md) as lossy UTF-8: any byte
// sequence that isn't valid UTF-8 is replaced rather than rejecting the
// whole upload, since text files in the wild carry all sorts of legacy
// encodings.
func extractText(_ context.Context, data []byte) (Result, error) {
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return Result{Text: text}, nil
}
