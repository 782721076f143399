package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens_ASCIIRoughlyFourBytesPerToken(t *testing.T) {
	s := "this is sixteen chars!!"
	got := EstimateTokens(s)
	assert.InDelta(t, len(s)/4, got, 2)
}

func TestEstimateTokens_CJKUsesShorterRatio(t *testing.T) {
	ascii := EstimateTokens("aaaaaaaaaaaaaaaaaaaaaaaa") // 24 bytes
	cjk := EstimateTokens("披锋披锋披锋披锋披锋披锋披锋披锋披锋披锋披锋披锋")   // 24 chars
	assert.Greater(t, cjk, ascii)
}
