// Package rag implements the Hybrid Retriever pipeline (spec.md §4.3):
// query preprocessing against a domain lexicon, dense+sparse vector search
// fused by reciprocal-rank, optional structured SQL fusion, reranking, and
// citation tagging.
package rag

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
)

// Lexicon is a domain's synonym table and structured-query trigger list,
// e.g. mapping a defect term like "flash" to its aliases ("burr", "披锋") so
// a query in either language or jargon expands to the same sparse-search
// vocabulary (spec.md §4.3 step 1).
type Lexicon struct {
	Domain             string              `yaml:"domain"`
	Synonyms           map[string][]string `yaml:"synonyms"`
	StructuredTriggers []string            `yaml:"structured_triggers"`
}

// Catalog holds every domain's Lexicon, keyed by domain name.
type Catalog struct {
	lexicons map[string]Lexicon
}

// lexiconFile is the on-disk shape: a list of per-domain lexicons.
type lexiconFile struct {
	Lexicons []Lexicon `yaml:"lexicons"`
}

// LoadCatalog reads a YAML domain-lexicon file (spec.md §6 configuration:
// "domain lexicon... loaded by pkg/config").
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "read lexicon file %q", path)
	}
	var f lexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "parse lexicon file %q", path)
	}
	c := &Catalog{lexicons: make(map[string]Lexicon, len(f.Lexicons))}
	for _, lex := range f.Lexicons {
		c.lexicons[lex.Domain] = lex
	}
	return c, nil
}

// NewCatalog builds a Catalog directly from in-memory lexicons (tests, or a
// default baked-in catalog when no file is configured).
func NewCatalog(lexicons ...Lexicon) *Catalog {
	c := &Catalog{lexicons: make(map[string]Lexicon, len(lexicons))}
	for _, lex := range lexicons {
		c.lexicons[lex.Domain] = lex
	}
	return c
}

// Expand appends every synonym of every lexicon term found in query, so
// downstream sparse search matches on any alias (spec.md §4.3 step 1: "e.g.,
// defect-term aliases"). The original query always comes first.
func (c *Catalog) Expand(domain, query string) string {
	lex, ok := c.lexicons[domain]
	if !ok {
		return query
	}
	lower := strings.ToLower(query)
	var extra []string
	for term, synonyms := range lex.Synonyms {
		if strings.Contains(lower, strings.ToLower(term)) {
			extra = append(extra, synonyms...)
		}
	}
	if len(extra) == 0 {
		return query
	}
	return query + " " + strings.Join(extra, " ")
}

// IsStructured reports whether query matches one of the domain's
// structured-query triggers (spec.md §4.3 step 4: "counts, filters by
// part/material/severity").
func (c *Catalog) IsStructured(domain, query string) bool {
	lex, ok := c.lexicons[domain]
	if !ok {
		return false
	}
	lower := strings.ToLower(query)
	for _, trigger := range lex.StructuredTriggers {
		if strings.Contains(lower, strings.ToLower(trigger)) {
			return true
		}
	}
	return false
}

// Matches reports whether query touches any term this domain's lexicon
// knows about — either a synonym-table key or one of its own aliases. The
// router's routing fallback uses this (not IsStructured, which classifies a
// different thing: whether a query should also trigger structured SQL
// fusion) to decide whether an unparsed routing response still belongs to a
// known domain rather than a generic specialist (spec.md §4.6: "on parse
// failure twice, default to the domain specialist if the query matched a
// domain-lexicon term").
func (c *Catalog) Matches(domain, query string) bool {
	lex, ok := c.lexicons[domain]
	if !ok {
		return false
	}
	lower := strings.ToLower(query)
	for term, synonyms := range lex.Synonyms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
		for _, syn := range synonyms {
			if strings.Contains(lower, strings.ToLower(syn)) {
				return true
			}
		}
	}
	return false
}

// DefaultMoldLexicon is the baked-in lexicon for the mold/defect-QA domain
// named throughout spec.md's worked examples (e.g. "披锋" / "flash" / "burr").
func DefaultMoldLexicon() Lexicon {
	return Lexicon{
		Domain: "mold",
		Synonyms: map[string][]string{
			"flash":      {"burr", "披锋", "溢料"},
			"short shot": {"欠注", "incomplete fill"},
			"warp":       {"翘曲", "warpage"},
			"sink mark":  {"缩痕", "sink"},
		},
		StructuredTriggers: []string{"how many", "count", "多少", "几个"},
	}
}
