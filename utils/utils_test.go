package utils

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "short", Truncate("short", 5))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijkl", 10))
	assert.Len(t, Truncate("abcdefghijkl", 10), 10)
	assert.Equal(t, "whole", Truncate("whole", 0))
}

func TestTruncateNeverSplitsRunes(t *testing.T) {
	// the cut position lands in the middle of the two-byte é
	s := strings.Repeat("x", 496) + "é" + strings.Repeat("x", 10)
	out := Truncate(s, 500)
	assert.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, len(out), 500)
	assert.Equal(t, strings.Repeat("x", 496)+"...", out)

	// multi-byte content near a tiny cap
	out = Truncate("日本語", 2)
	assert.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, len(out), 2)

	for max := 1; max <= 12; max++ {
		out := Truncate("aé日b語c", max)
		assert.True(t, utf8.ValidString(out), "max=%d", max)
		assert.LessOrEqual(t, len(out), max)
	}
}

func TestIsTrue(t *testing.T) {
	assert.False(t, IsTrue(nil))
	assert.False(t, IsTrue(ToPtr(false)))
	assert.True(t, IsTrue(ToPtr(true)))
}

func TestUTCNow(t *testing.T) {
	now := UTCNow()
	assert.Equal(t, time.UTC, now.Location())

	later := UTCNowAdd(time.Hour)
	assert.True(t, later.After(now))
}
