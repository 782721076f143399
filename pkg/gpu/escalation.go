package gpu

import (
	"context"
	"unicode"
)

// QualityGateConfig tunes the OCR quality gate that decides whether a
// classically-OCR'd page must be re-run as a contended ocr-vl job (spec.md
// §4.8: "pages failing the quality gate ... are re-queued as ocr-vl jobs").
type QualityGateConfig struct {
	MaxNonASCIIRatio float64 // default 0.30
	MinConfidence    float64 // default 0.6
}

func (c *QualityGateConfig) SetDefaults() {
	if c.MaxNonASCIIRatio <= 0 {
		c.MaxNonASCIIRatio = 0.30
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.6
	}
}

// PageResult is a classical OCR pass's output for one page, the input to
// the quality gate.
type PageResult struct {
	Text       string
	Blocks     int
	Confidence float64
}

// NeedsEscalation reports whether res fails the quality gate and must be
// re-queued as an ocr-vl job: empty blocks, excessive non-ASCII entropy (a
// symptom of misrecognized glyphs, not genuine non-Latin content — callers
// that expect CJK/other scripts should route those pages to ocr-vl
// unconditionally rather than through this gate), or low model confidence.
func (cfg QualityGateConfig) NeedsEscalation(res PageResult) bool {
	cfg.SetDefaults()
	if res.Blocks == 0 {
		return true
	}
	if res.Confidence < cfg.MinConfidence {
		return true
	}
	return nonASCIIRatio(res.Text) > cfg.MaxNonASCIIRatio
}

func nonASCIIRatio(s string) float64 {
	if s == "" {
		return 0
	}
	var total, nonASCII int
	for _, r := range s {
		total++
		if r > unicode.MaxASCII {
			nonASCII++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(nonASCII) / float64(total)
}

// RunExclusive acquires class on gpuID, runs fn, and releases the lease on
// every exit path — the scoped-acquisition pattern spec.md §5 requires
// ("holders must release even on failure").
func (s *Scheduler) RunExclusive(ctx context.Context, class Class, gpuID string, priority int, fn func(*Lease) error) error {
	lease, err := s.Acquire(ctx, class, gpuID, priority)
	if err != nil {
		return err
	}
	defer s.Release(lease)
	return fn(lease)
}
