package chunk

import (
	"log/slog"
	"strings"

	"github.com/phrazzld/analysis-service/internal/config"
)

// Options sizes fragments. All values are in tokens.
type Options struct {
	// EngineTokenBudget is the engine's input budget for one call.
	EngineTokenBudget int
	// SingleChunkThreshold is the content+prompt size under which content is
	// sent whole.
	SingleChunkThreshold int
	// SafetyMargin is reserved on every call for estimation error.
	SafetyMargin int
	// DefaultPromptOverhead is assumed when no prompt is given.
	DefaultPromptOverhead int
	// MinChunkTokens is the floor of the per-fragment budget.
	MinChunkTokens int
}

// OptionsFromConfig converts chunking configuration into Options.
func OptionsFromConfig(cfg config.ChunkingConfig) Options {
	return Options{
		EngineTokenBudget:     cfg.EngineTokenBudget,
		SingleChunkThreshold:  cfg.SingleChunkThreshold,
		SafetyMargin:          cfg.SafetyMargin,
		DefaultPromptOverhead: cfg.DefaultPromptOverhead,
		MinChunkTokens:        cfg.MinChunkTokens,
	}
}

// Chunker splits content into fragments. It is safe for concurrent use if its
// TokenCounter is.
type Chunker struct {
	counter TokenCounter
	opts    Options
	logger  *slog.Logger
}

// New creates a Chunker.
func New(counter TokenCounter, opts Options, logger *slog.Logger) *Chunker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{
		counter: counter,
		opts:    opts,
		logger:  logger.With("component", "chunker"),
	}
}

// CountTokens exposes the chunker's token estimate.
func (c *Chunker) CountTokens(text string) int {
	return c.counter.CountTokens(text)
}

// PromptOverhead estimates the tokens a request's prompts add to every call.
func (c *Chunker) PromptOverhead(systemPrompt, userPrompt string) int {
	n := c.counter.CountTokens(systemPrompt) + c.counter.CountTokens(userPrompt)
	if n == 0 {
		return c.opts.DefaultPromptOverhead
	}
	return n
}

// Budget returns the content tokens available to one fragment.
func (c *Chunker) Budget(promptOverhead int) int {
	return max(c.opts.MinChunkTokens, c.opts.EngineTokenBudget-promptOverhead-c.opts.SafetyMargin)
}

// Chunk splits content into one or more fragments. Fragments joined in order,
// ignoring whitespace at split points, reproduce content.
// Chunk never fails; internal errors fall back to fixed-size slices.
func (c *Chunker) Chunk(content string, promptOverhead int) (chunks []string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("chunking failed, falling back to fixed-size slices", "panic", r)
			chunks = fixedSlices(content, c.opts.EngineTokenBudget*charsPerToken)
		}
	}()

	promptOverhead = max(promptOverhead, 0)
	total := c.counter.CountTokens(content) + promptOverhead
	if total < c.opts.SingleChunkThreshold {
		return []string{content}
	}

	budget := c.Budget(promptOverhead)
	chunks = c.split(content, levelBlock, budget)
	if len(chunks) == 0 {
		return []string{content}
	}

	c.logger.Info("content split into chunks",
		"chunk_count", len(chunks),
		"total_tokens", total,
		"chunk_budget", budget)
	return chunks
}

// split packs the units of text at lvl into fragments of at most budget
// tokens, descending to finer levels for units that do not fit.
func (c *Chunker) split(text string, lvl level, budget int) []string {
	if lvl == levelChars {
		return c.windows(text, budget)
	}

	units := lvl.units(text)
	if len(units) <= 1 {
		return c.split(strings.TrimSpace(text), lvl+1, budget)
	}

	sep := lvl.separator()
	sepTokens := c.counter.CountTokens(sep)

	var (
		chunks        []string
		current       strings.Builder
		currentTokens int
	)
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentTokens = 0
		}
	}

	for _, unit := range units {
		n := c.counter.CountTokens(unit)
		if n > budget {
			flush()
			chunks = append(chunks, c.split(unit, lvl+1, budget)...)
			continue
		}

		if current.Len() > 0 && currentTokens+sepTokens+n > budget {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
			currentTokens += sepTokens
		}
		current.WriteString(unit)
		currentTokens += n
	}
	flush()

	return chunks
}

// windows cuts text into character windows that each fit budget, halving a
// window until it fits. A single rune is accepted even if it does not.
func (c *Chunker) windows(text string, budget int) []string {
	runes := []rune(text)
	size := budget * charsPerToken

	var chunks []string
	for start := 0; start < len(runes); {
		end := min(start+size, len(runes))
		for end-start > 1 && c.counter.CountTokens(string(runes[start:end])) > budget {
			end = start + (end-start)/2
		}
		if end-start == 1 && c.counter.CountTokens(string(runes[start:end])) > budget {
			c.logger.Warn("accepting oversized fragment", "budget", budget)
		}
		chunks = append(chunks, string(runes[start:end]))
		start = end
	}
	return chunks
}
