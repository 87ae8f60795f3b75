// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/northbound/corpus/internal/config"
	"github.com/northbound/corpus/internal/logger"
)

const (
	researchSearchURL  = "https://api.tavily.com/search"
	researchTimeout    = 15 * time.Second
	maxResearchResults = 3
	maxSnippetChars    = 1000
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// researchAgent consults an external web-research API and strips each
// result page down to its visible text with goquery, per §4.10.
// Missing credentials are treated exactly like the teacher's
// ai.AskQuestion treats a missing OPENAI_API_KEY: log and continue
// rather than fail the turn.
type researchAgent struct {
	apiKey     string
	httpClient *http.Client
}

func newResearchAgent(cfg *config.Config) *researchAgent {
	return &researchAgent{apiKey: cfg.ResearchAPIKey, httpClient: &http.Client{Timeout: researchTimeout}}
}

func (a *researchAgent) run(ctx context.Context, q Query) (Step, error) {
	if a.apiKey == "" {
		logger.Printf("orchestrator: research agent skipped, RESEARCH_API_KEY not set")
		return Step{Agent: "research", Summary: "research: skipped, no external search credential configured"}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, researchTimeout)
	defer cancel()

	urls, err := a.searchURLs(ctx, q.Text)
	if err != nil {
		logger.Printf("orchestrator: research search failed: %v", err)
		return Step{Agent: "research", Summary: "research: external search unavailable"}, nil
	}

	hits := make([]ExternalHit, 0, len(urls))
	for _, u := range urls {
		hit, err := a.fetchAndStrip(ctx, u)
		if err != nil {
			logger.Printf("orchestrator: research fetch %s failed: %v", u, err)
			continue
		}
		hits = append(hits, hit)
	}

	return Step{Agent: "research", Summary: fmt.Sprintf("research: %d external result(s)", len(hits)), External: hits}, nil
}

type researchSearchResult struct {
	URL string `json:"url"`
}

type researchSearchResponse struct {
	Results []researchSearchResult `json:"results"`
}

func (a *researchAgent) searchURLs(ctx context.Context, query string) ([]string, error) {
	payload, err := json.Marshal(map[string]any{
		"api_key":     a.apiKey,
		"query":       query,
		"max_results": maxResearchResults,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, researchSearchURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("research search API error: %d - %s", resp.StatusCode, string(body))
	}

	var result researchSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(result.Results))
	for _, r := range result.Results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return urls, nil
}

// fetchAndStrip fetches one page and reduces it to a title and a
// boilerplate-free text snippet via goquery.
func (a *researchAgent) fetchAndStrip(ctx context.Context, url string) (ExternalHit, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ExternalHit{}, err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return ExternalHit{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ExternalHit{}, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ExternalHit{}, fmt.Errorf("parse %s: %w", url, err)
	}

	doc.Find("script, style, nav, header, footer").Remove()
	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := whitespaceRe.ReplaceAllString(doc.Find("body").Text(), " ")
	text = strings.TrimSpace(text)
	if len(text) > maxSnippetChars {
		text = text[:maxSnippetChars]
	}

	return ExternalHit{URL: url, Title: title, Snippet: text}, nil
}
