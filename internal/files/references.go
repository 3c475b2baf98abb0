package files

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// ReferencePrefix marks a file reference inside request content.
const ReferencePrefix = "FILE_URL:"

// DefaultAllowedHosts are the hosts file references may point at.
var DefaultAllowedHosts = []string{"codahosted.io", "coda.imgix.net"}

var referencePattern = regexp.MustCompile(`FILE_URL:[^\s,]+`)

// ExtractReferences returns the FILE_URL references found in content, in
// order of appearance, with the prefix removed. Duplicates are kept.
func ExtractReferences(content string) []string {
	matches := referencePattern.FindAllString(content, -1)
	if len(matches) == 0 {
		return nil
	}

	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		if ref := strings.TrimPrefix(m, ReferencePrefix); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

// StripReferences removes FILE_URL references and their separators from
// content, leaving any accompanying text.
func StripReferences(content string) string {
	stripped := referencePattern.ReplaceAllString(content, "")
	stripped = strings.Trim(stripped, " ,\n\t")
	return strings.TrimSpace(stripped)
}

// ValidateReference checks that ref is an https URL on one of the allowed
// hosts.
func ValidateReference(ref string, allowedHosts []string) error {
	u, err := url.Parse(ref)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q is not https", ErrInvalidReference, u.Scheme)
	}
	if !slices.Contains(allowedHosts, strings.ToLower(u.Hostname())) {
		return fmt.Errorf("%w: host %q is not allowed", ErrInvalidReference, u.Hostname())
	}
	if u.Path == "" || u.Path == "/" {
		return fmt.Errorf("%w: missing file path", ErrInvalidReference)
	}
	return nil
}
