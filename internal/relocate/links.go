package relocate

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PDFLink is a candidate document discovered while crawling.
type PDFLink struct {
	URL         string `json:"url"`
	LinkText    string `json:"link_text,omitempty"`
	Filename    string `json:"filename"`
	FormNumber  string `json:"form_number,omitempty"`
	FoundOnPage string `json:"found_on_page"`
}

// extractLinks pulls document links and same-host navigation links from a
// parsed page. Document links are found in anchors as well as embed, iframe
// and object tags; navigation links come from anchors only.
func extractLinks(doc *goquery.Document, pageURL *url.URL) (docLinks []PDFLink, pageLinks []string) {
	seenDocs := make(map[string]struct{})
	seenPages := make(map[string]struct{})

	addDoc := func(u *url.URL, rawHref, typeAttr, text string) bool {
		if !isPDFLink(rawHref, typeAttr) {
			return false
		}
		abs := u.String()
		if _, ok := seenDocs[abs]; ok {
			return true
		}
		seenDocs[abs] = struct{}{}
		name := filename(abs)
		number := formNumberFrom(name)
		if number == "" && text != "" {
			number = formNumberFrom(text)
		}
		docLinks = append(docLinks, PDFLink{
			URL:         abs,
			LinkText:    text,
			Filename:    name,
			FormNumber:  number,
			FoundOnPage: pageURL.String(),
		})
		return true
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		rawHref, _ := s.Attr("href")
		u, ok := resolveLink(pageURL, rawHref)
		if !ok {
			return
		}
		typeAttr, _ := s.Attr("type")
		if addDoc(u, rawHref, typeAttr, trimmedText(s)) {
			return
		}
		if !navCandidate(u, pageURL.Host) {
			return
		}
		abs := u.String()
		if _, ok := seenPages[abs]; !ok {
			seenPages[abs] = struct{}{}
			pageLinks = append(pageLinks, abs)
		}
	})

	for _, sel := range []struct{ selector, attr string }{
		{"embed[src]", "src"},
		{"iframe[src]", "src"},
		{"object[data]", "data"},
	} {
		doc.Find(sel.selector).Each(func(_ int, s *goquery.Selection) {
			raw, _ := s.Attr(sel.attr)
			u, ok := resolveLink(pageURL, raw)
			if !ok {
				return
			}
			typeAttr, _ := s.Attr("type")
			addDoc(u, raw, typeAttr, "")
		})
	}

	return docLinks, pageLinks
}

func trimmedText(s *goquery.Selection) string {
	text := s.Text()
	// Link text is advisory; cap it so one styled anchor cannot bloat a result.
	const maxLen = 200
	if len(text) > maxLen {
		text = text[:maxLen]
	}
	return strings.Join(strings.Fields(text), " ")
}
