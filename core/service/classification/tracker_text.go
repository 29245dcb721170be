package classification

import (
	stdhtml "html"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var (
	htmlTagHint = regexp.MustCompile(`(?i)<\s*(html|body|div|p|br|table|span|a)\b`)
	codeFence   = regexp.MustCompile("(?s)^\\s*```[a-zA-Z0-9_-]*\\s*\\n?(.*?)\\n?\\s*```\\s*$")
)

// LooksLikeHTML is a cheap check used before parsing.
func LooksLikeHTML(s string) bool {
	return htmlTagHint.MatchString(s)
}

// HTMLToText extracts readable text, skipping non-content elements and
// breaking lines after block elements.
func HTMLToText(content string) string {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return stdhtml.UnescapeString(content)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "style", "script", "noscript", "iframe", "head", "meta", "link", "title":
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "p", "div", "br", "tr", "li", "h1", "h2", "h3", "h4", "h5", "h6":
				if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
					b.WriteByte('\n')
				}
			}
		}
	}
	walk(doc)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// PrepareBody strips markup and caps the body at limit runes. A limit of 0
// leaves the length alone.
func PrepareBody(body string, limit int) string {
	if LooksLikeHTML(body) {
		body = HTMLToText(body)
	}
	body = strings.TrimSpace(body)
	return truncateRunes(body, limit)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// StripCodeFence removes a Markdown code fence wrapping a model response.
func StripCodeFence(s string) string {
	if m := codeFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}
