package adapter

import (
	"context"
	"testing"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	demo := NewDemoAdapter("demo-erp", DomainERP, DefaultDemoFixtures()[DomainERP])

	require.NoError(t, reg.Register(demo))

	got, ok := reg.Get("demo-erp")
	require.True(t, ok)
	assert.Equal(t, demo, got)
}

func TestRegistry_DuplicateNameRejected(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewDemoAdapter("demo-erp", DomainERP, nil)))

	err := reg.Register(NewDemoAdapter("demo-erp", DomainERP, nil))
	assert.Error(t, err)
}

func TestRegistry_QueryDomain_ReturnsFixture(t *testing.T) {
	reg := NewRegistry()
	fixtures := DefaultDemoFixtures()
	require.NoError(t, reg.Register(NewDemoAdapter("demo-erp", DomainERP, fixtures[DomainERP])))

	rec, err := reg.QueryDomain(context.Background(), DomainERP, "get_invoice_status", nil)
	require.NoError(t, err)
	assert.Equal(t, "paid", rec["status"])
}

func TestRegistry_QueryDomain_NoAdapterRegistered(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.QueryDomain(context.Background(), DomainCRM, "get_account", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindBackendUnavailable, apperr.KindOf(err))
}

// unavailableAdapter always reports unavailable, used to exercise the
// multi-adapter fallback path in QueryDomain.
type unavailableAdapter struct {
	name   string
	domain Domain
}

func (a *unavailableAdapter) Name() string                     { return a.name }
func (a *unavailableAdapter) Domain() Domain                   { return a.domain }
func (a *unavailableAdapter) IsAvailable(context.Context) bool { return false }
func (a *unavailableAdapter) Operations() []string             { return nil }
func (a *unavailableAdapter) Query(context.Context, string, map[string]any) (Record, error) {
	return nil, apperr.New(apperr.KindBackendUnavailable, "should not be called")
}

func TestRegistry_QueryDomain_FallsBackPastUnavailableAdapter(t *testing.T) {
	reg := NewRegistry()
	fixtures := DefaultDemoFixtures()

	require.NoError(t, reg.Register(&unavailableAdapter{name: "erp-rest", domain: DomainERP}))
	require.NoError(t, reg.Register(NewDemoAdapter("demo-erp", DomainERP, fixtures[DomainERP])))

	rec, err := reg.QueryDomain(context.Background(), DomainERP, "get_invoice_status", nil)
	require.NoError(t, err)
	assert.Equal(t, "paid", rec["status"])
}

func TestRegistry_QueryDomain_UnsupportedOperation(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewDemoAdapter("demo-crm", DomainCRM, DefaultDemoFixtures()[DomainCRM])))

	_, err := reg.QueryDomain(context.Background(), DomainCRM, "delete_account", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindOperationUnsupported, apperr.KindOf(err))
}

func TestRegistry_ForDomain_PreservesRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	first := NewDemoAdapter("a", DomainIT, nil)
	second := NewDemoAdapter("b", DomainIT, nil)
	require.NoError(t, reg.Register(first))
	require.NoError(t, reg.Register(second))

	adapters := reg.ForDomain(DomainIT)
	require.Len(t, adapters, 2)
	assert.Equal(t, "a", adapters[0].Name())
	assert.Equal(t, "b", adapters[1].Name())
}
