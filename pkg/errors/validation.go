package errors

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

const maxStageIDLength = 256

// ValidateStageID checks a stage ID received from outside the process, such
// as a select request to the viewer API. The empty string is allowed and
// means "no selection".
func ValidateStageID(id string) error {
	if len(id) > maxStageIDLength {
		return New(ErrCodeInvalidInput, "stage ID too long (max %d characters)", maxStageIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "stage ID contains control characters")
		}
	}
	return nil
}

// ValidatePath validates an output path given on the command line.
//
// Rules:
//   - not empty
//   - at most 500 characters
//   - no null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}
	return nil
}

// cacheSchemes are the URI schemes accepted by ValidateCacheURI.
var cacheSchemes = []string{"file", "redis", "rediss", "mongodb", "mongodb+srv", "none"}

// ValidateCacheURI validates a --cache backend URI. A bare path is treated
// as a file cache directory.
func ValidateCacheURI(uri string) error {
	if uri == "" {
		return New(ErrCodeInvalidCache, "cache URI cannot be empty")
	}
	if !strings.Contains(uri, "://") {
		return ValidatePath(uri)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return Wrap(ErrCodeInvalidCache, err, "malformed cache URI")
	}
	for _, s := range cacheSchemes {
		if u.Scheme == s {
			return nil
		}
	}
	return New(ErrCodeInvalidCache, "unsupported cache scheme %q", u.Scheme)
}

var formatRegex = regexp.MustCompile(`^[a-z]+$`)

// ValidateFormat checks that format is one of allowed.
func ValidateFormat(format string, allowed ...string) error {
	if !formatRegex.MatchString(format) {
		return New(ErrCodeInvalidFormat, "invalid format %q", format)
	}
	for _, a := range allowed {
		if a == format {
			return nil
		}
	}
	return New(ErrCodeInvalidFormat, "unsupported format %q (want one of %s)", format, strings.Join(allowed, ", "))
}
