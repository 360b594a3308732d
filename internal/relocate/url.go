package relocate

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Extensions that never lead to more document links; navigation candidates
// with these suffixes are dropped before enqueuing.
var skippedExtensions = map[string]struct{}{
	".css": {}, ".js": {}, ".json": {}, ".xml": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".ico": {},
	".zip": {}, ".gz": {}, ".tar": {},
	".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".mp3": {}, ".mp4": {}, ".mov": {}, ".avi": {},
}

var reFormNumber = regexp.MustCompile(`(?i)([a-z]{2,4})-?(\d{2,4})`)

// formNumberFrom extracts a normalized "PREFIX-NNNN" form number from a
// filename or link text, or returns empty.
func formNumberFrom(text string) string {
	groups := reFormNumber.FindStringSubmatch(text)
	if len(groups) != 3 {
		return ""
	}
	return strings.ToUpper(groups[1]) + "-" + groups[2]
}

// ParentURL returns the immediate parent directory of a document URL:
// https://host/forms/docs/civ-775.pdf -> https://host/forms/docs/.
func ParentURL(docURL string) (string, error) {
	u, err := url.Parse(docURL)
	if err != nil {
		return "", err
	}
	dir := path.Dir(u.Path)
	if dir == "." || dir == "/" {
		dir = ""
	}
	return u.Scheme + "://" + u.Host + dir + "/", nil
}

// baseSectionURL derives the phase-2 crawl root from a failed document URL:
// the first path segment (https://host/forms/docs/x.pdf -> https://host/forms/),
// or the site root for top-level files.
func baseSectionURL(docURL string) (string, error) {
	u, err := url.Parse(docURL)
	if err != nil {
		return "", err
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) > 1 && segments[0] != "" {
		return u.Scheme + "://" + u.Host + "/" + segments[0] + "/", nil
	}
	return u.Scheme + "://" + u.Host + "/", nil
}

// filename returns the last path segment of a URL, without query/fragment.
func filename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}
	return path.Base(u.Path)
}

// isPDFLink reports whether a raw href points at a PDF, by extension or by
// an explicit type attribute value.
func isPDFLink(rawHref, typeAttr string) bool {
	href := strings.ToLower(rawHref)
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	if strings.HasSuffix(href, ".pdf") {
		return true
	}
	return strings.Contains(strings.ToLower(typeAttr), "application/pdf")
}

// navCandidate reports whether an absolute URL is worth enqueuing as a
// navigation page: same host as the crawl origin, an HTML-ish target, and
// free of query noise.
func navCandidate(u *url.URL, host string) bool {
	if u.Host != host {
		return false
	}
	if u.RawQuery != "" {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == ".pdf" {
		return false
	}
	_, skipped := skippedExtensions[ext]
	return !skipped
}

// resolveLink turns a raw href into an absolute URL against the page it was
// found on, dropping fragments and unusable schemes.
func resolveLink(base *url.URL, rawHref string) (*url.URL, bool) {
	rawHref = strings.TrimSpace(rawHref)
	if rawHref == "" || strings.HasPrefix(rawHref, "#") {
		return nil, false
	}
	lower := strings.ToLower(rawHref)
	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "tel:") {
		return nil, false
	}
	u, err := base.Parse(rawHref)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	u.Fragment = ""
	return u, true
}

// normalizedFilename strips the extension and separator characters for
// fuzzy filename comparison.
func normalizedFilename(name string) string {
	name = strings.ToLower(name)
	name = strings.TrimSuffix(name, ".pdf")
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ':
			return -1
		}
		return r
	}, name)
}
