package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/analysis-service/internal/platform/logger"
)

// testOptions keeps budgets small so tests stay fast with the heuristic
// counter (one token per four characters).
var testOptions = Options{
	EngineTokenBudget:     200,
	SingleChunkThreshold:  150,
	SafetyMargin:          20,
	DefaultPromptOverhead: 30,
	MinChunkTokens:        40,
}

func newTestChunker() *Chunker {
	return New(HeuristicCounter{}, testOptions, logger.DiscardLogger())
}

// squash removes all whitespace so rejoined fragments can be compared with
// the original content regardless of separators.
func squash(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func assertFragmentsFit(t *testing.T, c *Chunker, chunks []string, budget int) {
	t.Helper()
	for i, chunk := range chunks {
		assert.LessOrEqual(t, c.CountTokens(chunk), budget, "fragment %d exceeds budget", i)
		assert.NotEmpty(t, chunk, "fragment %d is empty", i)
	}
}

func TestChunkBelowThresholdReturnsContentUnmodified(t *testing.T) {
	t.Parallel()
	c := newTestChunker()

	content := "  A short note.\n\nWith two paragraphs.  "
	chunks := c.Chunk(content, 10)

	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0])
}

func TestChunkEmptyContent(t *testing.T) {
	t.Parallel()
	c := newTestChunker()

	assert.Equal(t, []string{""}, c.Chunk("", 0))
	// Overhead alone may cross the threshold; content still comes back.
	assert.Equal(t, []string{""}, c.Chunk("", 500))
}

func TestChunkSplitsParagraphs(t *testing.T) {
	t.Parallel()
	c := newTestChunker()

	var paragraphs []string
	for i := 0; i < 30; i++ {
		paragraphs = append(paragraphs, fmt.Sprintf("Paragraph %02d has some words in it to take up room.", i))
	}
	content := strings.Join(paragraphs, "\n\n")
	overhead := 30
	budget := c.Budget(overhead)

	chunks := c.Chunk(content, overhead)

	require.Greater(t, len(chunks), 1)
	assertFragmentsFit(t, c, chunks, budget)
	assert.Equal(t, squash(content), squash(strings.Join(chunks, "")))
	// Paragraph boundaries are honored: no paragraph is cut in two.
	for _, chunk := range chunks {
		for _, p := range strings.Split(chunk, "\n\n") {
			assert.Contains(t, paragraphs, p)
		}
	}
}

func TestChunkPrefersBracketBlocks(t *testing.T) {
	t.Parallel()
	c := newTestChunker()

	var b strings.Builder
	b.WriteString("Preamble outside any block.\n")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "<record %d: %s>\n", i, strings.Repeat("data ", 20))
	}
	b.WriteString("Trailing text.")
	content := b.String()

	chunks := c.Chunk(content, 30)

	require.Greater(t, len(chunks), 1)
	assertFragmentsFit(t, c, chunks, c.Budget(30))
	assert.Equal(t, squash(content), squash(strings.Join(chunks, "")))
	for _, chunk := range chunks {
		for _, unit := range strings.Split(chunk, "\n\n") {
			if strings.HasPrefix(unit, "<") {
				assert.True(t, strings.HasSuffix(unit, ">"), "block was cut: %q", unit)
			}
		}
	}
}

func TestChunkFallsBackToSentences(t *testing.T) {
	t.Parallel()
	c := newTestChunker()

	// One giant paragraph made of sentences.
	var sentences []string
	for i := 0; i < 40; i++ {
		sentences = append(sentences, fmt.Sprintf("Sentence number %d is here!", i))
	}
	content := strings.Join(sentences, " ")

	chunks := c.Chunk(content, 30)

	require.Greater(t, len(chunks), 1)
	assertFragmentsFit(t, c, chunks, c.Budget(30))
	assert.Equal(t, squash(content), squash(strings.Join(chunks, "")))
	for _, chunk := range chunks {
		assert.True(t, strings.HasSuffix(chunk, "!"), "sentence was cut: %q", chunk)
	}
}

func TestChunkFallsBackToCharacterWindows(t *testing.T) {
	t.Parallel()
	c := newTestChunker()

	content := strings.Repeat("x", 5000)

	chunks := c.Chunk(content, 30)

	require.Greater(t, len(chunks), 1)
	assertFragmentsFit(t, c, chunks, c.Budget(30))
	assert.Equal(t, content, strings.Join(chunks, ""))
}

func TestChunkOversizedUnitDescendsOnlyForThatUnit(t *testing.T) {
	t.Parallel()
	c := newTestChunker()

	small := "A small paragraph."
	huge := strings.Repeat("y", 3000)
	content := small + "\n\n" + huge + "\n\n" + small

	chunks := c.Chunk(content, 30)

	assert.Equal(t, small, chunks[0])
	assert.Equal(t, small, chunks[len(chunks)-1])
	assertFragmentsFit(t, c, chunks, c.Budget(30))
	assert.Equal(t, squash(content), squash(strings.Join(chunks, "")))
}

type panickyCounter struct{ calls int }

func (p *panickyCounter) CountTokens(text string) int {
	p.calls++
	if p.calls > 1 {
		panic("encoder exploded")
	}
	return len(text)
}

func TestChunkNeverFails(t *testing.T) {
	t.Parallel()
	c := New(&panickyCounter{}, testOptions, logger.DiscardLogger())

	content := strings.Repeat("z", 2000)
	chunks := c.Chunk(content, 0)

	require.NotEmpty(t, chunks)
	assert.Equal(t, content, strings.Join(chunks, ""))
}

func TestPromptOverheadAndBudget(t *testing.T) {
	t.Parallel()
	c := newTestChunker()

	assert.Equal(t, testOptions.DefaultPromptOverhead, c.PromptOverhead("", ""))
	assert.Equal(t, 3, c.PromptOverhead("abcd", "abcdefgh"))

	assert.Equal(t, 200-30-20, c.Budget(30))
	assert.Equal(t, testOptions.MinChunkTokens, c.Budget(1000))
}

func TestHeuristicCounter(t *testing.T) {
	t.Parallel()

	var h HeuristicCounter
	assert.Equal(t, 0, h.CountTokens(""))
	assert.Equal(t, 1, h.CountTokens("abc"))
	assert.Equal(t, 2, h.CountTokens("abcde"))
	assert.Equal(t, 1, h.CountTokens("日本語"))
}
