// Package rules implements Tier-1 categorization: learned mappings from
// description patterns to categories, built from past manual corrections.
package rules

import (
	"regexp"
	"strings"

	"hearthledger/internal/logging"
	"hearthledger/internal/models"
)

// compiledRule is a rule with its pattern pre-compiled. A nil regexp
// means the pattern did not compile and is evaluated as a
// case-insensitive substring instead.
type compiledRule struct {
	rule models.CategoryRule
	re   *regexp.Regexp
}

// Matcher evaluates category rules against transaction descriptions.
// Rules are evaluated in the order given (descending confidence from the
// store); the first match wins.
type Matcher struct {
	rules  []compiledRule
	logger logging.Logger
}

// NewMatcher compiles the given rules. Patterns that fail to compile as
// regular expressions are kept as substring tests, not dropped.
func NewMatcher(ruleList []models.CategoryRule, logger logging.Logger) *Matcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	compiled := make([]compiledRule, 0, len(ruleList))
	for _, rule := range ruleList {
		cr := compiledRule{rule: rule}
		if re, err := regexp.Compile("(?i)" + rule.Pattern); err == nil {
			cr.re = re
		}
		compiled = append(compiled, cr)
	}

	return &Matcher{rules: compiled, logger: logger}
}

// Match returns the category id of the first rule matching the
// description, or false when no rule matches.
func (m *Matcher) Match(description string) (int64, bool) {
	if strings.TrimSpace(description) == "" {
		return 0, false
	}

	upper := strings.ToUpper(description)
	for _, cr := range m.rules {
		matched := false
		if cr.re != nil {
			matched = cr.re.MatchString(description)
		} else {
			matched = strings.Contains(upper, strings.ToUpper(cr.rule.Pattern))
		}
		if matched {
			m.logger.WithFields(
				logging.Field{Key: "pattern", Value: cr.rule.Pattern},
				logging.Field{Key: "category_id", Value: cr.rule.CategoryID},
			).Debug("Description matched category rule")
			return cr.rule.CategoryID, true
		}
	}

	return 0, false
}

// Len returns the number of loaded rules.
func (m *Matcher) Len() int {
	return len(m.rules)
}
