package routepath

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		input string
		want  Result
	}{
		{"", Result{Path: "/", Changed: true}},
		{"/", Result{Path: "/"}},
		{"/about", Result{Path: "/about"}},
		{"about", Result{Path: "/about", Changed: true}},
		{"/about/", Result{Path: "/about", Changed: true}},
		{"/blog//post", Result{Path: "/blog/post", Changed: true}},
		{"/blog/./post", Result{Path: "/blog/post", Changed: true}},
		{"/blog/../other", Result{Path: "/other", Changed: true}},
		{"/search?q=go", Result{Path: "/search", Search: "?q=go"}},
		{"/doc#intro", Result{Path: "/doc", Hash: "#intro"}},
		{"/doc/?a=1#top", Result{Path: "/doc", Search: "?a=1", Hash: "#top", Changed: true}},
		{"/q#a?b", Result{Path: "/q", Hash: "#a?b"}},
		{"/caf%C3%A9", Result{Path: "/caf%C3%A9"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Canonicalize(tt.input)
			if err != nil {
				t.Fatalf("Canonicalize(%q) error: %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Canonicalize(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestCanonicalizeErrors(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{"/a\\b", ErrBackslashInPath},
		{"/a\x00b", ErrNullByteInPath},
		{"/a%00b", ErrNullByteInPath},
		{"/a%GG", ErrInvalidPercentEscape},
		{"/a%2", ErrInvalidPercentEscape},
		{"/../secret", ErrPathEscapesRoot},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Canonicalize(tt.input)
			if !errors.Is(err, tt.want) {
				t.Errorf("Canonicalize(%q) error = %v, want %v", tt.input, err, tt.want)
			}
		})
	}
}

func TestResultURL(t *testing.T) {
	r, err := Canonicalize("/a//b?x=1#y")
	if err != nil {
		t.Fatal(err)
	}
	if r.URL() != "/a/b?x=1#y" {
		t.Errorf("URL() = %q", r.URL())
	}
}

func TestValidateNavTarget(t *testing.T) {
	for _, bad := range []string{
		"https://evil.example",
		"//evil.example/path",
		"javascript:alert(1)",
		"relative/path",
	} {
		if _, err := ValidateNavTarget(bad); !errors.Is(err, ErrAbsoluteURL) {
			t.Errorf("ValidateNavTarget(%q) error = %v, want ErrAbsoluteURL", bad, err)
		}
	}

	got, err := ValidateNavTarget("/groups/gsb/")
	if err != nil {
		t.Fatal(err)
	}
	if got.Path != "/groups/gsb" {
		t.Errorf("Path = %q", got.Path)
	}
}

func TestSegments(t *testing.T) {
	got, err := Segments("/users/caf%C3%A9/posts")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"users", "café", "posts"}, got); diff != "" {
		t.Errorf("Segments mismatch (-want +got):\n%s", diff)
	}

	root, err := Segments("/")
	if err != nil || root != nil {
		t.Errorf("Segments(/) = %v, %v", root, err)
	}
}
