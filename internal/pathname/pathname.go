// Package pathname implements the strongly-typed path values the rest of
// the engine passes around instead of bare strings: a single path
// component, a relative sequence of components, and an absolute path
// rooted at the mount.
package pathname

import (
	"strings"

	"github.com/auriora/edenfs/internal/fserrors"
)

const separator = "/"

// Component is a single non-empty path element that may not contain the
// path separator or be "." or "..". Directory entries are keyed by
// Component, never by a raw string, so a caller can't accidentally split
// or join a name incorrectly.
type Component string

// NewComponent validates and constructs a Component.
func NewComponent(s string) (Component, error) {
	if s == "" {
		return "", fserrors.New(fserrors.AccessDenied, "path component must not be empty")
	}
	if strings.Contains(s, separator) {
		return "", fserrors.Newf(fserrors.AccessDenied, "path component %q must not contain %q", s, separator)
	}
	if s == "." || s == ".." {
		return "", fserrors.Newf(fserrors.AccessDenied, "path component must not be %q", s)
	}
	return Component(s), nil
}

// MustComponent is NewComponent for call sites that already know the value
// is valid (constants, test fixtures).
func MustComponent(s string) Component {
	c, err := NewComponent(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Component) String() string { return string(c) }

// Relative is a sequence of components, possibly empty (denoting the
// mount root itself).
type Relative []Component

// ParseRelative splits a slash-separated string into components, skipping
// empty segments produced by a leading, trailing, or doubled separator.
func ParseRelative(s string) (Relative, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, separator)
	out := make(Relative, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		c, err := NewComponent(p)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Join appends a component, returning a new slice so the receiver is never
// mutated in place.
func (r Relative) Join(c Component) Relative {
	out := make(Relative, len(r)+1)
	copy(out, r)
	out[len(r)] = c
	return out
}

// Parent returns all but the last component, and false if r is empty.
func (r Relative) Parent() (Relative, bool) {
	if len(r) == 0 {
		return nil, false
	}
	return r[:len(r)-1], true
}

// Base returns the last component, and false if r is empty.
func (r Relative) Base() (Component, bool) {
	if len(r) == 0 {
		return "", false
	}
	return r[len(r)-1], true
}

func (r Relative) String() string {
	parts := make([]string, len(r))
	for i, c := range r {
		parts[i] = string(c)
	}
	return strings.Join(parts, separator)
}

// Equal reports whether two relative paths name the same components in the
// same order.
func (r Relative) Equal(other Relative) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i] != other[i] {
			return false
		}
	}
	return true
}

// Absolute is a path rooted at the mount point, rendered with a leading
// separator. The mount root itself is the empty Relative.
type Absolute struct {
	rel Relative
}

// NewAbsolute wraps a Relative as an Absolute path rooted at the mount.
func NewAbsolute(rel Relative) Absolute {
	return Absolute{rel: rel}
}

// Relative returns the underlying component sequence.
func (a Absolute) Relative() Relative { return a.rel }

func (a Absolute) String() string {
	if len(a.rel) == 0 {
		return separator
	}
	return separator + a.rel.String()
}
