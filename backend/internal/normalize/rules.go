package normalize

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Rule is one ordered rewrite applied to a raw name
type Rule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`

	re *regexp.Regexp
}

// RuleSet applies its rules in order after Unicode NFKC folding
type RuleSet struct {
	rules []Rule
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultRules strips handle markers and trailing qualifiers such as
// "Stephen [QADAO]" or "Alice (facilitator)" and tidies whitespace and punctuation
func DefaultRules() *RuleSet {
	rs, err := NewRuleSet([]Rule{
		{Name: "strip_handle_marker", Pattern: `^@+`},
		{Name: "strip_bracket_qualifier", Pattern: `\s*\[[^\]]*\]\s*$`},
		{Name: "strip_paren_qualifier", Pattern: `\s*\([^)]*\)\s*$`},
		{Name: "collapse_whitespace", Pattern: `\s+`, Replace: " "},
		{Name: "trim_punctuation", Pattern: `^[\s\p{P}]+|[\s\p{P}]+$`},
	})
	if err != nil {
		panic(err)
	}
	return rs
}

// NewRuleSet compiles rules in the given order
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	out := make([]Rule, 0, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
		r.re = re
		out = append(out, r)
	}
	return &RuleSet{rules: out}, nil
}

// LoadRules reads an ordered rule list from a YAML file:
//
//	rules:
//	  - name: strip_bracket_qualifier
//	    pattern: '\s*\[[^\]]*\]\s*$'
//	    replace: ''
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read normalizer rules: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse normalizer rules %s: %w", path, err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("normalizer rules %s: no rules defined", path)
	}
	return NewRuleSet(f.Rules)
}

// Names returns the rule names in application order
func (rs *RuleSet) Names() []string {
	names := make([]string, 0, len(rs.rules))
	for _, r := range rs.rules {
		names = append(names, r.Name)
	}
	return names
}

// Clean applies every rule to raw and returns the display form of the name
func (rs *RuleSet) Clean(raw string) string {
	s := norm.NFKC.String(raw)
	for _, r := range rs.rules {
		s = r.re.ReplaceAllString(s, r.Replace)
	}
	return strings.TrimSpace(s)
}

// Key returns the comparison key of an already cleaned name
func Key(cleaned string) string {
	return cases.Fold().String(cleaned)
}
