// Copyright (c) 2025 Northbound System
package orchestrator

import "testing"

func TestFallbackPlan_DefaultsToDocumentsOnly(t *testing.T) {
	decision, summary := fallbackPlan("what did the Q3 report say about headcount?")
	if !decision.Documents || decision.People || decision.External {
		t.Errorf("expected documents-only default, got %+v", decision)
	}
	if summary == "" {
		t.Error("expected a non-empty summary")
	}
}

func TestFallbackPlan_DetectsPeopleKeyword(t *testing.T) {
	decision, _ := fallbackPlan("who is the contact for the Q3 report?")
	if !decision.People {
		t.Errorf("expected people=true, got %+v", decision)
	}
}

func TestFallbackPlan_DetectsExternalKeyword(t *testing.T) {
	decision, _ := fallbackPlan("what is the latest industry news on this topic?")
	if !decision.External {
		t.Errorf("expected external=true, got %+v", decision)
	}
}
