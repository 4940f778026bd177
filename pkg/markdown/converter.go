package markdown

import (
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	paragraphRe  = regexp.MustCompile(`(?s)<p>(.*?)</p>`)
	headingRe    = regexp.MustCompile(`(?s)<h[1-6][^>]*>(.*?)</h[1-6]>`)
	codeBlockRe  = regexp.MustCompile(`(?s)<pre><code(?: class="[^"]*")?>(.*?)</code></pre>`)
	tagRe        = regexp.MustCompile(`</?([a-zA-Z0-9]+)(?:\s[^>]*)?/?>`)
	extraLinesRe = regexp.MustCompile(`\n{3,}`)
)

// Telegram accepts only this subset of HTML.
var supportedTags = map[string]bool{
	"b": true, "i": true, "u": true, "s": true,
	"code": true, "pre": true, "a": true, "blockquote": true,
}

// ToTelegramHTML converts an assistant's markdown answer to Telegram HTML
func ToTelegramHTML(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}

	html := string(blackfriday.Run([]byte(markdown), blackfriday.WithExtensions(blackfriday.CommonExtensions)))
	return cleanHTMLForTelegram(html)
}

func cleanHTMLForTelegram(html string) string {
	html = headingRe.ReplaceAllString(html, "<b>$1</b>\n")
	html = paragraphRe.ReplaceAllString(html, "$1\n")

	html = strings.NewReplacer(
		"<strong>", "<b>", "</strong>", "</b>",
		"<em>", "<i>", "</em>", "</i>",
		"<del>", "<s>", "</del>", "</s>",
		"<ul>\n", "", "</ul>", "",
		"<ol>\n", "", "</ol>", "",
		"<li>", "• ", "</li>", "",
		"<br>", "\n", "<br/>", "\n", "<br />", "\n",
		"<hr>", "", "<hr/>", "", "<hr />", "",
	).Replace(html)

	html = codeBlockRe.ReplaceAllString(html, "<pre>$1</pre>")

	html = tagRe.ReplaceAllStringFunc(html, func(match string) string {
		name := tagRe.FindStringSubmatch(match)[1]
		if supportedTags[strings.ToLower(name)] {
			return match
		}
		return ""
	})

	html = extraLinesRe.ReplaceAllString(html, "\n\n")
	return strings.TrimSpace(html)
}
