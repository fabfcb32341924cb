package maps

import (
	"strings"

	"golang.org/x/net/html"
)

// htmlToText flattens Google's HTML instructions into speakable text.
// Block-level fragments such as "<div>Destination will be on the right</div>"
// become separate sentences.
func htmlToText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var parts []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return joinSentences(parts)
		case html.TextToken:
			if t := strings.Join(strings.Fields(string(z.Text())), " "); t != "" {
				parts = append(parts, t)
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "div" && len(parts) > 0 {
				parts[len(parts)-1] = strings.TrimRight(parts[len(parts)-1], ".") + "."
			}
		}
	}
}

func joinSentences(parts []string) string {
	return strings.TrimSpace(strings.Join(parts, " "))
}
