package chunk

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// charsPerToken is the rough character-to-token ratio of English prose.
const charsPerToken = 4

// TokenCounter estimates the number of engine tokens in a text.
type TokenCounter interface {
	CountTokens(text string) int
}

// TiktokenCounter counts tokens with the cl100k_base encoding.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the cl100k_base encoding.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}
	return &TiktokenCounter{encoding: encoding}, nil
}

// CountTokens returns the number of tokens in text.
func (c *TiktokenCounter) CountTokens(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// HeuristicCounter approximates tokens as one per four characters.
type HeuristicCounter struct{}

// CountTokens returns ceil(runes/4).
func (HeuristicCounter) CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

// NewTokenCounter returns a tiktoken counter, or the heuristic counter when
// the encoding cannot be loaded (it is fetched on first use).
func NewTokenCounter(logger *slog.Logger) TokenCounter {
	counter, err := NewTiktokenCounter()
	if err != nil {
		logger.Warn("tiktoken unavailable, using heuristic token counter", "error", err)
		return HeuristicCounter{}
	}
	return counter
}
