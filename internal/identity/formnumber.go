package identity

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultFormNumberPatterns is the ordered extraction cascade, most specific
// first. Every pattern must expose exactly two capture groups: the alpha
// prefix and the digits. The first pattern that matches wins.
func DefaultFormNumberPatterns() []string {
	return []string{
		// "Form Number: CIV-775" / "Form No. CIV-775"
		`(?mi)form\s*(?:no\.?|number:?)\s*([A-Za-z]{2,4})-?(\d{2,4})`,
		// "FORM CIV-775" at start of line
		`(?mi)^form\s+([A-Za-z]{2,4})-?(\d{2,4})`,
		// Standalone hyphenated pair
		`(?m)\b([A-Za-z]{2,4})-(\d{2,4})\b`,
		// Known prefixes without hyphen
		`(?mi)\b(civ|adr|mc|fw)(\d{3,4})\b`,
	}
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		patterns = DefaultFormNumberPatterns()
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("form number pattern %q: %w", p, err)
		}
		if re.NumSubexp() != 2 {
			return nil, fmt.Errorf("form number pattern %q: want 2 capture groups, got %d", p, re.NumSubexp())
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// ExtractFormNumber runs the pattern cascade over text and returns the first
// match normalized to "PREFIX-NNNN", or the empty string when no pattern
// matches.
func (m *Matcher) ExtractFormNumber(text string) string {
	if text == "" {
		return ""
	}
	for _, re := range m.patterns {
		groups := re.FindStringSubmatch(text)
		if len(groups) == 3 {
			return strings.ToUpper(groups[1]) + "-" + groups[2]
		}
	}
	return ""
}
