package domain

import "strings"

// PollingFieldCount is the number of source and target fields a polling
// request may split its content across.
const PollingFieldCount = 6

// PollingContent holds content split across numbered source and target
// fields by callers with per-field size limits.
type PollingContent struct {
	Sources [PollingFieldCount]string
	Targets [PollingFieldCount]string
}

// Reconstruct joins the split fields back into a single content string.
func (c PollingContent) Reconstruct() string {
	source := strings.Join(c.Sources[:], "")
	target := strings.Join(c.Targets[:], "")

	if target != "" {
		return "**TARGET CONTENT:**\n" + target + "\n\n**SOURCE CONTENT:**\n" + source
	}
	return "**SOURCE CONTENT:**\n" + source
}
