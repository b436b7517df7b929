package source

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// StripMarkup returns the visible text of an HTML fragment with entities
// decoded and whitespace collapsed.
func StripMarkup(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return compact(fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return compact(fragment)
	}
	doc.Find("script, style").Remove()

	return compact(doc.Text())
}

var lineBreakTags = map[string]bool{
	"br": true, "div": true, "li": true, "p": true, "td": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "section": true, "table": true,
}

// HTMLToLines flattens a page into non-empty text lines: scripts and styles
// are dropped, block-level closing tags and <br> end a line.
func HTMLToLines(page string) []string {
	z := html.NewTokenizer(strings.NewReader(page))

	var b strings.Builder
	skip := 0

loop:
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			break loop
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case (tag == "script" || tag == "style") && tt == html.StartTagToken:
				skip++
			case tag == "br":
				b.WriteByte('\n')
			default:
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "script" || tag == "style":
				skip = max(skip-1, 0)
			case lineBreakTags[tag]:
				b.WriteByte('\n')
			default:
				b.WriteByte(' ')
			}
		}
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = compact(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
