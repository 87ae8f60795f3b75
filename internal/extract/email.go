// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mnako/letters"
)

// extractEmail extracts text from an EML message: a small header block
// (subject, sender, date) followed by the body, preferring the plain
// text part and falling back to the HTML part.
func extractEmail(_ context.Context, data []byte) (Result, error) {
	email, err := letters.ParseEmail(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("parse EML: %w", err)
	}

	var builder strings.Builder
	metadata := make(map[string]string)

	if email.Headers.Subject != "" {
		builder.WriteString(fmt.Sprintf("Subject: %s\n", email.Headers.Subject))
		metadata["subject"] = email.Headers.Subject
	}
	if len(email.Headers.From) > 0 {
		from := email.Headers.From[0]
		sender := from.Address
		if from.Name != "" {
			sender = fmt.Sprintf("%s <%s>", from.Name, from.Address)
		}
		builder.WriteString(fmt.Sprintf("Sender: %s\n", sender))
		metadata["sender"] = sender
	}
	if !email.Headers.Date.IsZero() {
		builder.WriteString(fmt.Sprintf("Date: %s\n", email.Headers.Date.Format(time.RFC3339)))
	}

	builder.WriteString("\n")
	switch {
	case email.Text != "":
		builder.WriteString(email.Text)
	case email.HTML != "":
		builder.WriteString(email.HTML)
	}

	return Result{Text: strings.TrimSpace(builder.String()), Metadata: metadata}, nil
}
