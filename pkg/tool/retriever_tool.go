package tool

import (
	"context"

	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/rag"
)

// retriever is the subset of rag.Retriever a knowledge-search tool needs,
// kept narrow so this file doesn't import rag's full surface just to call
// one method.
type retriever interface {
	Retrieve(ctx context.Context, domain, query string, filter map[string]any) ([]model.RetrievedPassage, error)
}

// FromRetriever builds a Tool that dispatches to the Hybrid Retriever (C3)
// for a fixed domain, the shape spec.md's worked examples name
// "search_mold_kb" for the mold specialist's knowledge-base lookups. Args
// must carry a "query" string; an optional "filter" object is passed
// through to Retrieve unchanged (org/visibility scoping per spec.md §4.3).
func FromRetriever(spec model.ToolSpec, r retriever, domain string) Tool {
	return Tool{
		Spec: spec,
		Handler: func(ctx context.Context, _ model.UserContext, args map[string]any) (map[string]any, error) {
			query, _ := args["query"].(string)
			filter, _ := args["filter"].(map[string]any)

			passages, err := r.Retrieve(ctx, domain, query, filter)
			if err != nil {
				return nil, err
			}
			return map[string]any{"passages": passages}, nil
		},
	}
}

var _ retriever = (*rag.Retriever)(nil)
