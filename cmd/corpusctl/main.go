// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
)

var (
	serverAddr = flag.String("addr", "http://localhost:8081", "corpusd HTTP address")
	tenant     = flag.String("org", "demo", "tenant (X-Org-ID) to seed documents under")
)

// seedDocument is one sample file corpusctl uploads through the live
// /documents/upload endpoint, replacing the teacher's write-to-a-watched-
// directory seeder now that ingestion is a direct HTTP upload rather
// than a filesystem watcher.
type seedDocument struct {
	filename string
	phrase   string
	content  string
}

var markdownSeeds = []seedDocument{
	{
		filename: "project_alpha.md",
		phrase:   "Project Alpha confidential report",
		content: `# Project Alpha Confidential Report

## Executive Summary

This document contains confidential information about Project Alpha. The project involves advanced research and development in artificial intelligence and machine learning systems.

## Key Findings

- Project Alpha has made significant progress in neural network optimization
- The team has developed new algorithms for efficient training
- Performance metrics show 40% improvement over baseline systems

## Recommendations

We recommend continuing investment in Project Alpha as it shows great promise for future applications.
`,
	},
	{
		filename: "beta_analysis.md",
		phrase:   "Beta analysis quarterly results",
		content: `# Beta Analysis - Q4 Results

## Overview

This quarterly analysis covers the performance of Beta systems during the fourth quarter. Results show strong growth and improved efficiency.

## Financial Metrics

- Revenue increased by 25% compared to Q3
- Operating costs decreased by 10%
- Net profit margin improved to 18%

## Technical Achievements

The Beta team successfully deployed new infrastructure that reduced latency by 30%.
`,
	},
	{
		filename: "gamma_protocol.md",
		phrase:   "Gamma protocol implementation guide",
		content: `# Gamma Protocol Implementation Guide

## Introduction

The Gamma Protocol is a new communication standard designed for high-performance distributed systems. This guide provides detailed implementation instructions.

## Protocol Specification

The protocol uses a binary format with the following structure:
- Header: 16 bytes
- Payload: Variable length
- Checksum: 4 bytes

## Security Considerations

All communications must be encrypted using AES-256. Authentication is required before any data exchange.
`,
	},
	{
		filename: "delta_research.md",
		phrase:   "Delta research findings summary",
		content: `# Delta Research Findings Summary

## Research Objectives

The Delta research project aimed to investigate novel approaches to data compression and storage optimization.

## Results

Our findings indicate that a hybrid approach combining dictionary-based compression with arithmetic coding yields the best results, achieving 60% compression ratio on average.

## Conclusion

The Delta research has successfully identified optimal compression strategies for our use case.
`,
	},
	{
		filename: "epsilon_design.md",
		phrase:   "Epsilon design document architecture",
		content: `# Epsilon Design Document

## Architecture Overview

The Epsilon system is designed as a microservices architecture with the following components:
- API Gateway
- Authentication Service
- Data Processing Service
- Storage Service
- Notification Service

## Deployment

The system is deployed using Kubernetes with auto-scaling enabled. Each service runs in its own pod with resource limits configured.
`,
	},
}

func main() {
	flag.Parse()

	fmt.Printf("Seeding sample documents to %s (tenant %s)\n", *serverAddr, *tenant)

	uploaded := 0
	for _, doc := range markdownSeeds {
		if err := uploadDocument(doc.filename, []byte(doc.content)); err != nil {
			log.Printf("failed to upload %s: %v", doc.filename, err)
			continue
		}
		uploaded++
		fmt.Printf("uploaded: %s (phrase: %q)\n", doc.filename, doc.phrase)
	}

	pdfURL := "https://www.w3.org/WAI/ER/tests/xhtml/testfiles/resources/pdf/dummy.pdf"
	fmt.Printf("downloading sample PDF from %s...\n", pdfURL)
	if data, err := downloadPDF(pdfURL); err != nil {
		log.Printf("warning: failed to download sample PDF: %v", err)
	} else if err := uploadDocument("sample.pdf", data); err != nil {
		log.Printf("failed to upload sample.pdf: %v", err)
	} else {
		uploaded++
		fmt.Printf("uploaded: sample.pdf\n")
	}

	fmt.Printf("\nseeding complete: %d documents uploaded\n", uploaded)
}

func downloadPDF(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// uploadDocument POSTs a single file to /documents/upload as a multipart
// "files[]" upload, matching DocumentHandler.HandleUpload's expected
// form field name.
func uploadDocument(filename string, data []byte) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("files[]", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, *serverAddr+"/documents/upload", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Org-ID", *tenant)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
