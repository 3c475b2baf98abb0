// Package gemini provides an implementation of the generation.Completer
// interface that uses Google's Gemini API.
//
// This package is an infrastructure adapter in the hexagonal architecture,
// connecting the analysis engine to Google's external Gemini service. It
// translates completions into GenerateContent calls, strips model thinking
// from responses unless it was requested, and maps API failures onto the
// generation error taxonomy (rate limits, timeouts, auth and protocol errors).
//
// Retries are not performed here; the generation package owns retry policy.
package gemini
