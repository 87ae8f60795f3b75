// Copyright (c) 2025 Northbound System
package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/northbound/corpus/internal/config"
)

func TestResearchAgent_Run_SkipsWithoutCredential(t *testing.T) {
	a := newResearchAgent(&config.Config{})

	step, err := a.run(context.Background(), Query{Tenant: "acme", Text: "latest industry news"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(step.External) != 0 {
		t.Fatalf("expected no external hits without a credential, got %+v", step.External)
	}
	if step.Agent != "research" {
		t.Errorf("expected agent name research, got %q", step.Agent)
	}
}

func TestResearchAgent_FetchAndStrip_RemovesBoilerplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Example</title><script>evil()</script></head>` +
			`<body><nav>menu</nav><p>Useful content here.</p></body></html>`))
	}))
	defer srv.Close()

	a := newResearchAgent(&config.Config{ResearchAPIKey: "test-key"})
	hit, err := a.fetchAndStrip(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetchAndStrip failed: %v", err)
	}
	if hit.Title != "Example" {
		t.Errorf("expected title Example, got %q", hit.Title)
	}
	if !strings.Contains(hit.Snippet, "Useful content here.") {
		t.Errorf("expected snippet to contain body text, got %q", hit.Snippet)
	}
	if strings.Contains(hit.Snippet, "evil()") || strings.Contains(hit.Snippet, "menu") {
		t.Errorf("expected script/nav text stripped, got %q", hit.Snippet)
	}
}
