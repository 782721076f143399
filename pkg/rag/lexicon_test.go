package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalog_Expand_AddsSynonyms(t *testing.T) {
	c := NewCatalog(DefaultMoldLexicon())
	expanded := c.Expand("mold", "how do I fix flash on this part?")
	assert.Contains(t, expanded, "flash")
	assert.Contains(t, expanded, "burr")
	assert.Contains(t, expanded, "披锋")
}

func TestCatalog_Expand_UnknownDomainReturnsQueryUnchanged(t *testing.T) {
	c := NewCatalog(DefaultMoldLexicon())
	expanded := c.Expand("erp", "what is the invoice status?")
	assert.Equal(t, "what is the invoice status?", expanded)
}

func TestCatalog_IsStructured(t *testing.T) {
	c := NewCatalog(DefaultMoldLexicon())
	assert.True(t, c.IsStructured("mold", "how many defects this week?"))
	assert.False(t, c.IsStructured("mold", "describe the flash defect"))
}
