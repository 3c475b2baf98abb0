// Package files resolves file references carried by file-bearing analysis
// requests into plain text. It extracts FILE_URL references from request
// content, downloads each referenced file under a size cap and timeout, and
// extracts text from the supported media types (plain text, markdown, CSV,
// WebVTT, JSON, DOCX, XLSX and the text layer of PDF).
//
// Failures are classified for the worker's retry policy: ErrUnsupportedType
// and ErrDecode are permanent, ErrFetch is transient.
package files
