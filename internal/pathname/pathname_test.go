package pathname

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewComponentRejectsEmptyAndSeparatorAndDotNames(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"", "a/b", ".", ".."} {
		_, err := NewComponent(bad)
		assert.Errorf(t, err, "expected error for %q", bad)
	}

	c, err := NewComponent("file.txt")
	require.NoError(t, err)
	assert.Equal(t, "file.txt", c.String())
}

func TestMustComponentPanicsOnInvalid(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { MustComponent("a/b") })
	assert.NotPanics(t, func() { MustComponent("ok") })
}

func TestParseRelativeSkipsEmptySegments(t *testing.T) {
	t.Parallel()

	rel, err := ParseRelative("/a//b/c/")
	require.NoError(t, err)
	assert.Equal(t, "a/b/c", rel.String())
}

func TestParseRelativeEmptyStringIsMountRoot(t *testing.T) {
	t.Parallel()

	rel, err := ParseRelative("")
	require.NoError(t, err)
	assert.Empty(t, rel)
}

func TestRelativeJoinDoesNotMutateReceiver(t *testing.T) {
	t.Parallel()

	base := Relative{MustComponent("a")}
	joined := base.Join(MustComponent("b"))

	assert.Equal(t, "a", base.String())
	assert.Equal(t, "a/b", joined.String())
}

func TestRelativeParentAndBase(t *testing.T) {
	t.Parallel()

	rel := Relative{MustComponent("a"), MustComponent("b")}

	parent, ok := rel.Parent()
	require.True(t, ok)
	assert.Equal(t, "a", parent.String())

	base, ok := rel.Base()
	require.True(t, ok)
	assert.Equal(t, Component("b"), base)

	_, ok = Relative{}.Parent()
	assert.False(t, ok)
	_, ok = Relative{}.Base()
	assert.False(t, ok)
}

func TestRelativeEqual(t *testing.T) {
	t.Parallel()

	a := Relative{MustComponent("x"), MustComponent("y")}
	b := Relative{MustComponent("x"), MustComponent("y")}
	c := Relative{MustComponent("x")}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestAbsoluteStringRendersLeadingSeparator(t *testing.T) {
	t.Parallel()

	root := NewAbsolute(nil)
	assert.Equal(t, "/", root.String())

	sub := NewAbsolute(Relative{MustComponent("a"), MustComponent("b")})
	assert.Equal(t, "/a/b", sub.String())
}
