package tool

import (
	"context"

	"github.com/bestbox-ai/orchestrator/pkg/adapter"
	"github.com/bestbox-ai/orchestrator/pkg/model"
)

// FromAdapterOperation builds a Tool that dispatches to a single backend
// adapter operation through reg, the standard shape for the erp_*, crm_*,
// itops_*, and oa_* tools enumerated in spec.md §4.2.
func FromAdapterOperation(spec model.ToolSpec, reg *adapter.Registry, domain adapter.Domain, operation string) Tool {
	return Tool{
		Spec: spec,
		Handler: func(ctx context.Context, _ model.UserContext, args map[string]any) (map[string]any, error) {
			rec, err := reg.QueryDomain(ctx, domain, operation, args)
			if err != nil {
				return nil, err
			}
			return map[string]any(rec), nil
		},
	}
}
