package anchor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	doc := "Hello world"

	a := Resolve(doc, 6, 11)

	assert.Equal(t, "world", a.Text)
	assert.Equal(t, 6, a.From)
	assert.Equal(t, 11, a.To)
}

func TestResolve_ClampsOutOfRange(t *testing.T) {
	doc := "abc"

	a := Resolve(doc, -5, 100)

	assert.Equal(t, "abc", a.Text)
	assert.Equal(t, 0, a.From)
	assert.Equal(t, 3, a.To)
}

func TestResolve_InvertedRangeIsEmpty(t *testing.T) {
	a := Resolve("abc", 2, 1)

	assert.Empty(t, a.Text)
}

func TestLocate_RoundTrip(t *testing.T) {
	doc := "line one\nline two\nline three"

	pos := Locate(doc, "line two", -1)

	require.NotNil(t, pos)
	assert.Equal(t, 2, pos.Line)
	assert.Equal(t, 2, pos.StartLine)
	assert.Equal(t, 9, pos.Offset)
}

func TestLocate_MultiLineAnchor(t *testing.T) {
	doc := "alpha\nbeta\ngamma\ndelta"

	pos := Locate(doc, "beta\ngamma", -1)

	require.NotNil(t, pos)
	assert.Equal(t, 2, pos.StartLine)
	assert.Equal(t, 3, pos.Line)
}

func TestLocate_MissingAnchorIsOrphanSignal(t *testing.T) {
	assert.Nil(t, Locate("Hello there", "world", -1))
	assert.Nil(t, Locate("anything", "", -1))
}

func TestLocate_HintPrefersClosestOccurrence(t *testing.T) {
	// "dup" occurs at offsets 0, 10, and 20.
	doc := "dup......\ndup......\ndup"

	pos := Locate(doc, "dup", 18)

	require.NotNil(t, pos)
	assert.Equal(t, 20, pos.Offset)
}

func TestLocate_HintTieBreaksAtOrAfter(t *testing.T) {
	// Occurrences at 0 and 10; hint 5 is equidistant from both.
	doc := "dup......\ndup"

	pos := Locate(doc, "dup", 5)

	require.NotNil(t, pos)
	assert.Equal(t, 10, pos.Offset)
}

func TestLocate_NoHintReturnsFirstOccurrence(t *testing.T) {
	doc := "dup and dup again"

	pos := Locate(doc, "dup", -1)

	require.NotNil(t, pos)
	assert.Equal(t, 0, pos.Offset)
}

func TestIsOrphaned(t *testing.T) {
	doc := "Hello world"

	assert.False(t, IsOrphaned(doc, "world"))
	assert.True(t, IsOrphaned("Hello there", "world"))
	// Empty anchors never orphan.
	assert.False(t, IsOrphaned(doc, ""))
}

func TestIsOrphaned_ExactMatchOnly(t *testing.T) {
	// No whitespace or case normalization.
	assert.True(t, IsOrphaned("hello world", "Hello World"))
	assert.True(t, IsOrphaned("hello  world", "hello world"))
}

func TestClickMatches(t *testing.T) {
	assert.True(t, ClickMatches("world", "world"))
	// Stored anchor is a substring of the clicked text.
	assert.True(t, ClickMatches("world", "Hello world"))
	// Clicked text is a substring of the stored anchor.
	assert.True(t, ClickMatches("Hello world", "world"))

	assert.False(t, ClickMatches("world", "there"))
	assert.False(t, ClickMatches("", "world"))
	assert.False(t, ClickMatches("world", ""))
}
