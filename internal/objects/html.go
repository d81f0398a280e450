package objects

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	htmlPolicyOnce sync.Once
	htmlPolicy     *bluemonday.Policy
)

// richTextPolicy allows the formatting subset used by lesson content. Script
// and style tags are dropped but their text is kept.
func richTextPolicy() *bluemonday.Policy {
	htmlPolicyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("p", "b", "i", "u", "em", "strong", "ul", "ol", "li", "br",
			"span", "div", "code", "pre", "blockquote", "sub", "sup", "h1", "h2", "h3",
			"table", "thead", "tbody", "tr", "td", "th")
		p.AllowAttrs("href").OnElements("a")
		p.AllowURLSchemes("http", "https")
		p.RequireParseableURLs(true)
		p.AllowNoAttrs().OnElements("a")
		p.AllowElementsContent("script", "style")
		htmlPolicy = p
	})
	return htmlPolicy
}

// SanitizeHTML strips disallowed tags, attributes and URLs from s.
func SanitizeHTML(s string) string {
	return richTextPolicy().Sanitize(s)
}

func normHTML(v interface{}) (interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return nil, errorf("Expected unicode HTML string, received %s", describe(v))
	}
	return SanitizeHTML(s), nil
}
