package mail

import (
	"strings"

	"golang.org/x/net/html"
)

// blockTags force a line break before and after their contents when HTML is
// flattened to text.
var blockTags = map[string]bool{
	"br": true, "p": true, "div": true, "tr": true, "td": true,
	"li": true, "table": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true,
}

// skipTags are elements whose contents never appear in the text rendering.
var skipTags = map[string]bool{
	"script": true, "style": true, "head": true, "title": true,
}

// HTMLToText flattens an HTML document into plain text, the form the vendor
// extraction patterns are written against. Inline markup collapses into the
// surrounding text; block elements become line breaks.
func HTMLToText(source string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(source))

	var b strings.Builder
	skipDepth := 0

	for {
		tokenType := tokenizer.Next()
		switch tokenType {
		case html.ErrorToken:
			return tidyText(b.String())

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text != "" {
				if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}

		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)

			if skipTags[tag] {
				if tokenType == html.StartTagToken {
					skipDepth++
				} else if tokenType == html.EndTagToken && skipDepth > 0 {
					skipDepth--
				}
				continue
			}

			if tag == "img" && tokenType != html.EndTagToken && skipDepth == 0 {
				if alt := attrValue(tokenizer, "alt"); alt != "" {
					if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
						b.WriteByte(' ')
					}
					b.WriteString("[" + alt + "]")
				}
				continue
			}

			if blockTags[tag] && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteByte('\n')
			}
		}
	}
}

// attrValue scans the current tag's attributes for the named one.
func attrValue(tokenizer *html.Tokenizer, name string) string {
	for {
		key, val, more := tokenizer.TagAttr()
		if string(key) == name {
			return string(val)
		}
		if !more {
			return ""
		}
	}
}

// tidyText collapses runs of blank lines and trims edge whitespace.
func tidyText(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
