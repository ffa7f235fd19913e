package epub

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockTags insert a line break when encountered during extraction.
var blockTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Br:         true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Tr:         true,
	atom.Blockquote: true,
	atom.Hr:         true,
}

// skipTags have their entire content dropped. Head covers titles and
// inline metadata that would otherwise leak into the chapter text.
var skipTags = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Head:   true,
}

// The tokenizer treats <script/> and <style/> as raw-text openers and
// swallows everything that follows; expand them to open/close pairs
// before tokenizing. XHTML content documents use the self-closing form.
var selfClosingSkipTag = regexp.MustCompile(`(?is)<(script|style)\b([^>]*)/>`)

func expandSelfClosingSkipTags(doc []byte) []byte {
	if !selfClosingSkipTag.Match(doc) {
		return doc
	}
	return selfClosingSkipTag.ReplaceAll(doc, []byte("<$1$2></$1>"))
}

// extractText pulls the plain text out of an (X)HTML content document.
// Block-level elements become newlines, script/style content is
// dropped, and whitespace runs collapse to single spaces.
func extractText(doc []byte) (string, error) {
	tokenizer := html.NewTokenizer(bytes.NewReader(expandSelfClosingSkipTags(doc)))

	var buf strings.Builder
	skipDepth := 0
	atLineStart := true

	for {
		switch tt := tokenizer.Next(); tt {
		case html.ErrorToken:
			if err := tokenizer.Err(); !errors.Is(err, io.EOF) {
				return "", err
			}
			return strings.TrimSpace(buf.String()), nil

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			a := atom.Lookup(name)
			if skipTags[a] {
				// Self-closing script/style has no end tag to balance.
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if skipDepth > 0 {
				continue
			}
			if blockTags[a] && buf.Len() > 0 && !atLineStart {
				buf.WriteByte('\n')
				atLineStart = true
			}

		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if skipTags[atom.Lookup(name)] && skipDepth > 0 {
				skipDepth--
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			if text := collapseWhitespace(string(tokenizer.Text())); text != "" {
				buf.WriteString(text)
				atLineStart = false
			}
		}
	}
}

// collapseWhitespace squeezes whitespace runs to single spaces while
// keeping one leading/trailing space so inline elements stay separated.
// All-whitespace input collapses to "".
func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}

	out := strings.Join(fields, " ")
	if isSpaceByte(s[0]) {
		out = " " + out
	}
	if isSpaceByte(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
