package files

import "errors"

var (
	// ErrUnsupportedType is returned when a file's media type has no text
	// extractor.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrDecode is returned when a file cannot be decoded as its media type.
	ErrDecode = errors.New("file could not be decoded")

	// ErrFetch is returned when a file cannot be downloaded.
	ErrFetch = errors.New("file download failed")

	// ErrTooLarge is returned when a file exceeds the configured size cap.
	ErrTooLarge = errors.New("file exceeds maximum size")

	// ErrInvalidReference is returned for references that are not https URLs
	// on an allowed host.
	ErrInvalidReference = errors.New("invalid file reference")

	// ErrTooManyFiles is returned when a request references more files than
	// allowed.
	ErrTooManyFiles = errors.New("too many file references")
)

// IsPermanent reports whether retrying a resolution failure is pointless.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrTooLarge) ||
		errors.Is(err, ErrInvalidReference) ||
		errors.Is(err, ErrTooManyFiles)
}
