// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package chunker

import (
	"regexp"
	"strings"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Chunk is one packed window of text, token-bounded and carrying the
// paragraph it started in plus the caller's document metadata, per
// §4.3.
type Chunk struct {
	Text         string
	Index        int
	TokenCount   int
	ParagraphIdx int
	Metadata     map[string]string
}

// Chunker splits text into overlapping, token-bounded windows: paragraph
// split, sentence split within each paragraph, greedy packing up to
// chunkSize tokens, overlap carried at a sentence boundary, and a
// hard split for any single sentence that alone exceeds chunkSize.
//
// Measurement follows the teacher's boundary-search loop in
// `internal/processor/chunker.go`, generalized from raw character
// counting to token counting via a tokenizer matched to the embedder.
type Chunker struct {
	chunkSize int
	overlap   int
	enc       *tiktoken.Tiktoken
}

// New creates a Chunker targeting chunkSize tokens per chunk with the
// given overlap, both measured by the cl100k_base encoding (the
// encoding shared by every currently supported EMBED_MODEL family).
func New(chunkSize, overlap int) (*Chunker, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap, enc: enc}, nil
}

var paragraphSplitRe = regexp.MustCompile(`\n\s*\n+`)

// sentenceSplitRe matches a run of sentence-ending punctuation (., !, ?)
// plus the whitespace (or end of text) after it; splitSentences cuts at
// the end of each match, so the terminator stays attached to the
// sentence it ends.
var sentenceSplitRe = regexp.MustCompile(`(?:[.!?]+)(?:\s+|$)`)

// tokenSentence is one sentence with its pre-encoded token run and the
// paragraph index it belongs to.
type tokenSentence struct {
	text         string
	tokens       []int
	paragraphIdx int
}

// Chunk splits text into token-bounded windows carrying metadata,
// per §4.3. Empty input yields an empty sequence.
func (c *Chunker) Chunk(text string, metadata map[string]string) ([]Chunk, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	var sentences []tokenSentence
	for pIdx, para := range paragraphSplitRe.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, s := range splitSentences(para) {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			sentences = append(sentences, tokenSentence{
				text:         s,
				tokens:       c.enc.Encode(s, nil, nil),
				paragraphIdx: pIdx,
			})
		}
	}

	var chunks []Chunk
	var curSentences []tokenSentence
	curTokens := 0
	chunkIdx := 0

	flush := func() {
		if len(curSentences) == 0 {
			return
		}
		var sb strings.Builder
		for i, s := range curSentences {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(s.text)
		}
		chunks = append(chunks, Chunk{
			Text:         sb.String(),
			Index:        chunkIdx,
			TokenCount:   curTokens,
			ParagraphIdx: curSentences[0].paragraphIdx,
			Metadata:     metadata,
		})
		chunkIdx++
	}

	for _, s := range sentences {
		tokenCount := len(s.tokens)

		// A single sentence longer than chunkSize must be hard-split on
		// token count rather than dropped.
		if tokenCount > c.chunkSize {
			flush()
			curSentences = nil
			curTokens = 0

			for start := 0; start < tokenCount; start += c.chunkSize {
				end := start + c.chunkSize
				if end > tokenCount {
					end = tokenCount
				}
				piece := c.enc.Decode(s.tokens[start:end])
				chunks = append(chunks, Chunk{
					Text:         piece,
					Index:        chunkIdx,
					TokenCount:   end - start,
					ParagraphIdx: s.paragraphIdx,
					Metadata:     metadata,
				})
				chunkIdx++
			}
			continue
		}

		if curTokens+tokenCount > c.chunkSize && len(curSentences) > 0 {
			flush()
			curSentences = carryOverlap(curSentences, c.overlap)
			curTokens = 0
			for _, s := range curSentences {
				curTokens += len(s.tokens)
			}
			// Drop carried sentences from the front until the next
			// sentence fits, so no chunk exceeds chunkSize.
			for len(curSentences) > 0 && curTokens+tokenCount > c.chunkSize {
				curTokens -= len(curSentences[0].tokens)
				curSentences = curSentences[1:]
			}
		}

		curSentences = append(curSentences, s)
		curTokens += tokenCount
	}
	flush()

	return chunks, nil
}

// carryOverlap returns the trailing sentences of a closed chunk whose
// token count sums to at most overlap tokens, preserved as the prefix
// of the next chunk so retrieval context isn't lost at a chunk
// boundary.
func carryOverlap(sentences []tokenSentence, overlap int) []tokenSentence {
	if overlap <= 0 {
		return nil
	}
	var kept []tokenSentence
	total := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		total += len(sentences[i].tokens)
		if total > overlap {
			break
		}
		kept = append([]tokenSentence{sentences[i]}, kept...)
	}
	return kept
}

// splitSentences splits a paragraph into sentences on ., !, and ?
// boundaries, grounded on the teacher's punctuation-followed-by-
// whitespace scan in the original character-based chunker.
func splitSentences(paragraph string) []string {
	idxs := sentenceSplitRe.FindAllStringIndex(paragraph, -1)
	if len(idxs) == 0 {
		return []string{paragraph}
	}
	var out []string
	start := 0
	for _, loc := range idxs {
		out = append(out, paragraph[start:loc[1]])
		start = loc[1]
	}
	if start < len(paragraph) {
		out = append(out, paragraph[start:])
	}
	return out
}
