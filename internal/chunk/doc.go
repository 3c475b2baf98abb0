// Package chunk splits content into token-bounded fragments that fit the
// analysis engine's input budget.
//
// Content below the single-chunk threshold is returned whole. Larger content
// is split at the coarsest boundary that works (bracket blocks, then
// paragraphs, then sentences, then character windows) and greedily packed
// into fragments. Chunking never fails: any internal error degrades to
// fixed-size character slices.
package chunk
