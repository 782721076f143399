// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel

// Package server exposes the runtime's HTTP surface (spec.md §6): an
// OpenAI-compatible chat endpoint that streams turn events as server-sent
// events, the human-approval resume endpoint, thread/turn read models, and
// the two supplemented operational endpoints (rating ingestion, GPU
// scheduler status). Routing is github.com/go-chi/chi/v5, the teacher's own
// router choice.
package server
