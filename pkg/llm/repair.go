package llm

import (
	"encoding/json"
	"strings"
)

// reasoningOpen/reasoningClose delimit the preamble quantized models emit
// ahead of their visible answer (the `<think>...</think>` convention common
// to reasoning-distilled open models). Content before the close tag — or
// the whole string, if no close tag ever arrives — is reasoning, never
// user-visible text (spec.md §4.4 item 1).
const (
	reasoningOpen  = "<think>"
	reasoningClose = "</think>"
)

// splitReasoning separates a raw completion into its reasoning preamble and
// visible answer. A completion with no open tag is returned unchanged as
// the answer with no reasoning.
func splitReasoning(raw string) (reasoning, answer string) {
	start := strings.Index(raw, reasoningOpen)
	if start == -1 {
		return "", raw
	}
	rest := raw[start+len(reasoningOpen):]
	end := strings.Index(rest, reasoningClose)
	if end == -1 {
		// Still inside the preamble (truncated stream, or a model that
		// never closes the tag): treat everything as reasoning.
		return strings.TrimSpace(rest), ""
	}
	reasoning = strings.TrimSpace(rest[:end])
	answer = strings.TrimSpace(rest[end+len(reasoningClose):])
	return reasoning, answer
}

// maxRepairAttempts bounds the JSON repair loop (spec.md §4.4 item 2: "up
// to 3 attempts").
const maxRepairAttempts = 3

// repairToolArgs attempts to parse raw as a JSON object, applying
// progressively more aggressive bounded recovery (balance braces/quotes,
// drop trailing garbage) up to maxRepairAttempts times. ok is false if no
// attempt produced valid JSON, in which case the caller must treat the
// message as "no tool call" (spec.md §4.4 item 2).
func repairToolArgs(raw string) (args map[string]any, repaired bool, ok bool) {
	candidate := raw
	for attempt := 0; attempt < maxRepairAttempts; attempt++ {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			return parsed, attempt > 0, true
		}
		candidate = repairAttempt(candidate, attempt)
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
		return parsed, true, true
	}
	return nil, true, false
}

// repairAttempt applies one step of bounded recovery. Each step is
// progressively more aggressive than the last.
func repairAttempt(s string, attempt int) string {
	switch attempt {
	case 0:
		return dropTrailingComma(s)
	case 1:
		return balanceBraces(balanceQuotes(dropTrailingComma(s)))
	default:
		return truncateToLastCompleteValue(s)
	}
}

// dropTrailingComma removes a comma immediately followed by (optional
// whitespace and) a closing brace/bracket, and any comma trailing the end
// of the string outright.
func dropTrailingComma(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == ',' {
			j := i + 1
			for j < len(runes) && (runes[j] == ' ' || runes[j] == '\t' || runes[j] == '\n' || runes[j] == '\r') {
				j++
			}
			if j == len(runes) || runes[j] == '}' || runes[j] == ']' {
				continue // drop this comma
			}
		}
		b.WriteRune(runes[i])
	}
	return strings.TrimRight(b.String(), " \t\n\r")
}

func balanceQuotes(s string) string {
	if strings.Count(s, `"`)%2 == 1 {
		return s + `"`
	}
	return s
}

func balanceBraces(s string) string {
	opens := strings.Count(s, "{") - strings.Count(s, "}")
	brOpens := strings.Count(s, "[") - strings.Count(s, "]")
	for brOpens > 0 {
		s += "]"
		brOpens--
	}
	for opens > 0 {
		s += "}"
		opens--
	}
	return s
}

// truncateToLastCompleteValue drops everything after the last top-level
// comma or closing bracket, then re-closes the structure. A last-resort
// recovery for truncated arrays/objects that balanceBraces alone can't fix.
func truncateToLastCompleteValue(s string) string {
	depth := 0
	lastSafe := -1
	inString := false
	escaped := false
	for i, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
			}
		case ',':
			if !inString && depth == 1 {
				lastSafe = i
			}
		}
	}
	if lastSafe == -1 {
		return s
	}
	return balanceBraces(s[:lastSafe])
}
