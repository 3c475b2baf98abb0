// Package generation provides the analysis engine contract and its
// implementation on top of external LLM services. It abstracts the details of
// each provider (Gemini, OpenAI) behind the Completer interface, so the
// worker pipeline can process chunks, assess quality, name results and
// reconcile formatting without coupling to a specific API.
package generation
