package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/observability"
	"github.com/bestbox-ai/orchestrator/pkg/registry"
)

// Catalog is the startup-loaded set of tools available to specialist
// agents, keyed by name (spec.md §4.2). It is not modified once startup
// registration is done.
type Catalog struct {
	tools   *registry.BaseRegistry[Tool]
	tracer  *observability.Tracer
	metrics *observability.Metrics
}

// NewCatalog builds an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{tools: registry.New[Tool]()}
}

// WithObservability attaches a tracer and metrics recorder to the catalog.
// Either may be nil; both tolerate nil receivers.
func (c *Catalog) WithObservability(tracer *observability.Tracer, metrics *observability.Metrics) *Catalog {
	c.tracer = tracer
	c.metrics = metrics
	return c
}

// Register adds a tool to the catalog. Called during startup wiring, never
// concurrently with Invoke (spec.md §4.1: "hot-reload is out of scope").
func (c *Catalog) Register(t Tool) error {
	return c.tools.Register(t.Spec.Name, t)
}

// Get returns the tool registered under name.
func (c *Catalog) Get(name string) (Tool, bool) {
	return c.tools.Get(name)
}

// Specs returns the ToolSpec for every registered tool, in stable name
// order — the shape the router and specialist prompts are built from.
func (c *Catalog) Specs() []model.ToolSpec {
	tools := c.tools.List()
	specs := make([]model.ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, t.Spec)
	}
	return specs
}

// Invoke runs the named tool against args under the calling user's
// permissions. It enforces three gates before the handler ever runs:
//
//  1. the tool must exist in the catalog
//  2. uc must carry the tool's PermissionTag
//  3. write-class tools return a PendingApproval instead of executing,
//     unless preApproved is true (the interrupt has already been resolved)
//
// On success Invoke returns an Envelope to hand back to the model; the
// PendingApproval return is non-nil only when the caller must pause the
// turn for human approval before Invoke is called again with preApproved.
func (c *Catalog) Invoke(ctx context.Context, toolCallID, name string, uc model.UserContext, args map[string]any, preApproved bool) (Envelope, *model.PendingApproval, error) {
	t, ok := c.Get(name)
	if !ok {
		return Envelope{}, nil, apperr.New(apperr.KindOperationUnsupported, "unknown tool %q", name)
	}

	start := time.Now()
	_, span := c.tracer.StartToolExecution(ctx, name, t.Spec.PermissionTag, toolCallID)
	defer span.End()

	env, pending, err := c.invoke(ctx, t, toolCallID, name, uc, args, preApproved)
	if pending == nil {
		c.metrics.RecordToolCall(name, time.Since(start))
	}
	if err != nil {
		c.tracer.RecordError(span, err)
		c.metrics.RecordToolError(name, string(apperr.KindOf(err)))
	}
	return env, pending, err
}

func (c *Catalog) invoke(ctx context.Context, t Tool, toolCallID, name string, uc model.UserContext, args map[string]any, preApproved bool) (Envelope, *model.PendingApproval, error) {
	if t.Spec.PermissionTag != "" && !uc.HasPermission(t.Spec.PermissionTag) {
		return ErrorEnvelope(string(apperr.KindPermissionDenied), fmt.Sprintf("user lacks permission %q required by tool %q", t.Spec.PermissionTag, name)), nil, nil
	}

	if t.Spec.RequiresApproval() && !preApproved {
		return Envelope{}, &model.PendingApproval{
			ToolCallID: toolCallID,
			ToolName:   name,
			Args:       args,
			Reason:     "tool is write-class and requires human approval",
		}, nil
	}

	result, err := t.Handler(ctx, uc, args)
	if err != nil {
		appErr := apperr.New(apperr.KindInternal, "%s", err.Error())
		if ae, ok := err.(*apperr.Error); ok {
			appErr = ae
		}
		if apperr.Recoverable(appErr) {
			return ErrorEnvelope(string(appErr.Kind), appErr.Message), nil, nil
		}
		return Envelope{}, nil, appErr
	}

	return SuccessEnvelope(result), nil, nil
}

// GenerateSchema derives a JSON Schema object for args, the Go struct
// describing a tool's arguments, using the same reflector every adapter's
// ArgSchema is built with so tool definitions stay uniform across
// families (spec.md §4.2).
func GenerateSchema(args any) map[string]any {
	reflector := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.ReflectFromType(reflect.TypeOf(args))

	// jsonschema.Schema marshals to JSON; round-trip it into the generic
	// map[string]any shape ToolSpec.ArgSchema expects, since callers (and
	// the LLM client's request encoder) work with plain maps throughout.
	raw, err := schema.MarshalJSON()
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
