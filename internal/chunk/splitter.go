package chunk

import (
	"regexp"
	"strings"
	"unicode"
)

// level is a split granularity, coarsest first.
type level int

const (
	levelBlock level = iota
	levelParagraph
	levelSentence
	levelChars
)

var (
	blockPattern     = regexp.MustCompile(`<[^<>]+?>`)
	paragraphPattern = regexp.MustCompile(`\n[ \t\r]*\n`)
)

// separator is the text placed between units packed into one fragment.
func (l level) separator() string {
	switch l {
	case levelBlock, levelParagraph:
		return "\n\n"
	case levelSentence:
		return " "
	default:
		return ""
	}
}

// units splits text at the given level. Whitespace around units is dropped.
func (l level) units(text string) []string {
	switch l {
	case levelBlock:
		return splitBlocks(text)
	case levelParagraph:
		return nonEmpty(paragraphPattern.Split(text, -1))
	case levelSentence:
		return splitSentences(text)
	default:
		return []string{text}
	}
}

// splitBlocks returns each bracketed block as a unit, keeping the text
// between blocks as units of its own.
func splitBlocks(text string) []string {
	matches := blockPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nonEmpty([]string{text})
	}

	parts := make([]string, 0, 2*len(matches)+1)
	prev := 0
	for _, m := range matches {
		parts = append(parts, text[prev:m[0]], text[m[0]:m[1]])
		prev = m[1]
	}
	parts = append(parts, text[prev:])
	return nonEmpty(parts)
}

// splitSentences cuts after '.', '!' or '?' when followed by whitespace.
func splitSentences(text string) []string {
	var parts []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '.', '!', '?':
			if unicode.IsSpace(runes[i+1]) {
				parts = append(parts, string(runes[start:i+1]))
				start = i + 1
			}
		}
	}
	parts = append(parts, string(runes[start:]))
	return nonEmpty(parts)
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// fixedSlices cuts text into windows of size runes.
func fixedSlices(text string, size int) []string {
	if size <= 0 {
		size = 1
	}
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	slices := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		slices = append(slices, string(runes[start:min(start+size, len(runes))]))
	}
	return slices
}
