// Package signals turns free-text feedback into named signal strengths using
// an ordered table of pattern rules.
package signals

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// #region extractor

// Extractor applies rules in order; for a signal named by several rules the
// last rule wins.
type Extractor struct {
	rules  []Rule
	logger *zap.Logger
}

// NewExtractor builds an extractor. With no rules it uses DefaultRules.
func NewExtractor(logger *zap.Logger, rules ...Rule) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Extractor{rules: rules, logger: logger}
}

// Rules returns the rule names in evaluation order.
func (e *Extractor) Rules() []string {
	out := make([]string, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Name
	}
	return out
}

// Extract returns every signal recognised in text. It never fails; text with
// no recognisable feedback yields an empty set.
func (e *Extractor) Extract(text string) Set {
	var out Set
	norm := normalize(text)
	if norm == "" {
		return out
	}
	for _, r := range e.rules {
		for _, m := range r.Pattern.FindAllStringSubmatch(norm, -1) {
			sig, ok := r.Produce(m)
			if !ok {
				continue
			}
			out.Put(sig.Name, sig.Strength)
		}
	}
	if out.Len() == 0 {
		e.logger.Debug("no signal extracted", zap.Int("text_len", len(text)))
	}
	return out
}

// #endregion extractor

// #region helpers

var apostrophes = strings.NewReplacer("’", "'", "‘", "'")

func normalize(text string) string {
	return strings.TrimSpace(strings.ToLower(apostrophes.Replace(text)))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Longest first so alternation never stops at a shorter prefix.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// #endregion helpers
