// Package routepath normalizes navigation targets before they reach the
// route table or the history adapter.
package routepath

import (
	"errors"
	"net/url"
	"strings"
)

// Result contains a canonicalized navigation target.
type Result struct {
	// Path is the canonical path, always starting with "/".
	Path string

	// Search is the query string including the leading "?", or "".
	Search string

	// Hash is the fragment including the leading "#", or "".
	Hash string

	// Changed reports whether Path differs from the input path.
	Changed bool
}

// URL returns path+search+hash.
func (r Result) URL() string {
	return r.Path + r.Search + r.Hash
}

// Path canonicalization errors.
var (
	ErrBackslashInPath      = errors.New("path contains backslash")
	ErrNullByteInPath       = errors.New("path contains null byte")
	ErrInvalidPercentEscape = errors.New("invalid percent escape sequence")
	ErrPathEscapesRoot      = errors.New("path escapes root via ..")
	ErrAbsoluteURL          = errors.New("navigation target must be a relative path")
)

// Canonicalize normalizes a navigation target.
//
// The path part is rewritten as follows:
//   - a missing leading slash is added
//   - runs of slashes collapse (/blog//post → /blog/post)
//   - "." segments are removed and ".." segments resolved
//   - a trailing slash is removed (except for root)
//
// Backslashes, NUL bytes, malformed percent-escapes and ".." above root are
// rejected. The query and fragment are split off and preserved verbatim.
func Canonicalize(input string) (Result, error) {
	if input == "" {
		return Result{Path: "/", Changed: true}, nil
	}

	rest, hash := cutKeep(input, "#")
	path, search := cutKeep(rest, "?")

	if strings.Contains(path, "\\") {
		return Result{}, ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return Result{}, ErrNullByteInPath
	}
	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return Result{}, err
		}
	}

	var segments []string
	for _, seg := range strings.Split(path, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(segments) == 0 {
				return Result{}, ErrPathEscapesRoot
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}

	canon := "/" + strings.Join(segments, "/")
	return Result{
		Path:    canon,
		Search:  search,
		Hash:    hash,
		Changed: canon != path,
	}, nil
}

// ValidateNavTarget canonicalizes a target supplied by a client or a redirect
// entry, rejecting absolute and protocol-relative URLs.
func ValidateNavTarget(target string) (Result, error) {
	lower := strings.ToLower(target)
	if strings.HasPrefix(lower, "//") || strings.Contains(lower, "://") ||
		strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") {
		return Result{}, ErrAbsoluteURL
	}
	if !strings.HasPrefix(target, "/") {
		return Result{}, ErrAbsoluteURL
	}
	return Canonicalize(target)
}

// Segments splits a canonical path into decoded segments.
func Segments(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, nil
	}

	raw := strings.Split(path, "/")
	out := make([]string, 0, len(raw))
	for _, seg := range raw {
		decoded, err := url.PathUnescape(seg)
		if err != nil {
			return nil, ErrInvalidPercentEscape
		}
		out = append(out, decoded)
	}
	return out, nil
}

// cutKeep splits s at the first sep, keeping sep at the start of the tail.
func cutKeep(s, sep string) (head, tail string) {
	if i := strings.Index(s, sep); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

// validatePercentEscapes checks that every '%' starts a %XX hex escape.
func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
