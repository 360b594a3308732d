package identity

import (
	"regexp"
	"strings"
)

const maxChangedSections = 10

type sectionPattern struct {
	re   *regexp.Regexp
	name string
}

// Structural markers common in court forms. Matched against the uppercased
// changed lines.
var sectionPatterns = []sectionPattern{
	{regexp.MustCompile(`^(?:\d+\.|\([A-Z]\)|\(\d+\))\s*`), "Numbered section"},
	{regexp.MustCompile(`^INSTRUCTIONS`), "Instructions"},
	{regexp.MustCompile(`^NOTICE`), "Notice"},
	{regexp.MustCompile(`^WARNING`), "Warning"},
	{regexp.MustCompile(`^DECLARATION`), "Declaration"},
	{regexp.MustCompile(`^CERTIFICATE`), "Certificate"},
	{regexp.MustCompile(`^PROOF OF`), "Proof of Service"},
	{regexp.MustCompile(`^ORDER`), "Order"},
	{regexp.MustCompile(`^FOR COURT USE`), "Court Use Section"},
}

// changedSections maps added/removed diff lines onto a best-effort list of
// structural sections, capped at maxChangedSections entries.
func changedSections(added, removed []string) []string {
	seen := make(map[string]struct{})
	var sections []string

	record := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		sections = append(sections, name)
	}

	for _, line := range append(append([]string{}, added...), removed...) {
		if len(sections) >= maxChangedSections {
			break
		}
		upper := strings.ToUpper(strings.TrimSpace(line))
		if upper == "" {
			continue
		}

		matched := false
		for _, sp := range sectionPatterns {
			if sp.re.MatchString(upper) {
				record(sp.name)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		// "Label: value" field lines.
		if idx := strings.Index(line, ":"); idx > 0 && len(line) < 100 {
			field := strings.TrimSpace(line[:idx])
			if field != "" {
				record("Field: " + field)
			}
		}
	}
	if len(sections) > maxChangedSections {
		sections = sections[:maxChangedSections]
	}
	return sections
}
