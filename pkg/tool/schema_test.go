package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type getInvoiceStatusArgs struct {
	InvoiceID string `json:"invoice_id" jsonschema:"required,description=The invoice identifier"`
}

func TestGenerateSchema_ProducesObjectSchema(t *testing.T) {
	schema := GenerateSchema(getInvoiceStatusArgs{})
	require.NotEmpty(t, schema)
	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	_, hasField := props["invoice_id"]
	assert.True(t, hasField)
}
