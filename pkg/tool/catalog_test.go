package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/model"
)

func readTool(name, permission string) Tool {
	return Tool{
		Spec: model.ToolSpec{
			Name:            name,
			Description:     "test read tool",
			PermissionTag:   permission,
			SideEffectClass: model.SideEffectRead,
		},
		Handler: func(context.Context, model.UserContext, map[string]any) (map[string]any, error) {
			return map[string]any{"status": "ok"}, nil
		},
	}
}

func writeTool(name string) Tool {
	return Tool{
		Spec: model.ToolSpec{
			Name:            name,
			Description:     "test write tool",
			SideEffectClass: model.SideEffectWrite,
		},
		Handler: func(context.Context, model.UserContext, map[string]any) (map[string]any, error) {
			return map[string]any{"status": "created"}, nil
		},
	}
}

func TestCatalog_InvokeUnknownTool(t *testing.T) {
	c := NewCatalog()
	_, _, err := c.Invoke(context.Background(), "call-1", "missing", model.UserContext{}, nil, false)
	require.Error(t, err)
	assert.Equal(t, apperr.KindOperationUnsupported, apperr.KindOf(err))
}

func TestCatalog_InvokeDeniedWithoutPermission(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(readTool("get_invoice_status", "erp:read")))

	env, pending, err := c.Invoke(context.Background(), "call-1", "get_invoice_status", model.UserContext{}, nil, false)
	require.NoError(t, err)
	assert.Nil(t, pending)
	assert.False(t, env.OK)
	assert.Equal(t, string(apperr.KindPermissionDenied), env.Error.Kind)
}

func TestCatalog_InvokeAllowedWithPermission(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(readTool("get_invoice_status", "erp:read")))

	uc := model.UserContext{Permissions: []string{"erp:read"}}
	env, pending, err := c.Invoke(context.Background(), "call-1", "get_invoice_status", uc, nil, false)
	require.NoError(t, err)
	assert.Nil(t, pending)
	assert.True(t, env.OK)
	assert.Equal(t, "ok", env.Result["status"])
}

func TestCatalog_WriteToolReturnsPendingApproval(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(writeTool("create_ticket")))

	env, pending, err := c.Invoke(context.Background(), "call-2", "create_ticket", model.UserContext{}, map[string]any{"summary": "disk full"}, false)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "call-2", pending.ToolCallID)
	assert.Equal(t, Envelope{}, env)
}

func TestCatalog_WriteToolExecutesWhenPreApproved(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(writeTool("create_ticket")))

	env, pending, err := c.Invoke(context.Background(), "call-2", "create_ticket", model.UserContext{}, nil, true)
	require.NoError(t, err)
	assert.Nil(t, pending)
	assert.True(t, env.OK)
	assert.Equal(t, "created", env.Result["status"])
}

func TestCatalog_RecoverableHandlerErrorReturnsEnvelope(t *testing.T) {
	c := NewCatalog()
	tl := Tool{
		Spec: model.ToolSpec{Name: "flaky", SideEffectClass: model.SideEffectRead},
		Handler: func(context.Context, model.UserContext, map[string]any) (map[string]any, error) {
			return nil, apperr.New(apperr.KindBackendUnavailable, "backend down")
		},
	}
	require.NoError(t, c.Register(tl))

	env, pending, err := c.Invoke(context.Background(), "call-3", "flaky", model.UserContext{}, nil, false)
	require.NoError(t, err)
	assert.Nil(t, pending)
	assert.False(t, env.OK)
	assert.Equal(t, string(apperr.KindBackendUnavailable), env.Error.Kind)
}

func TestCatalog_SpecsStableOrder(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(readTool("b_tool", "")))
	require.NoError(t, c.Register(readTool("a_tool", "")))

	specs := c.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "a_tool", specs[0].Name)
	assert.Equal(t, "b_tool", specs[1].Name)
}
