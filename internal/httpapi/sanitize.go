package httpapi

import (
	"strings"

	"golang.org/x/net/html"
)

// sanitizeText keeps only the text content of markup and collapses whitespace runs.
func sanitizeText(input string) string {
	if !strings.ContainsAny(input, "<>&") {
		return strings.Join(strings.Fields(input), " ")
	}
	tokenizer := html.NewTokenizer(strings.NewReader(input))
	var builder strings.Builder
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(builder.String()), " ")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isRawTextElement(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isRawTextElement(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				builder.Write(tokenizer.Text())
			}
		}
	}
}

func isRawTextElement(name string) bool {
	return name == "script" || name == "style"
}
