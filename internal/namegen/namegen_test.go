package namegen

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextMatchesNamePattern(t *testing.T) {
	g := New(42)
	pattern := regexp.MustCompile(`^[A-Za-z]+[A-Za-z]+$`)
	for i := 0; i < 50; i++ {
		name := g.Next()
		assert.Regexp(t, pattern, name)
		assert.GreaterOrEqual(t, len(name), 8)
	}
}

func TestNextDeterministicForSeed(t *testing.T) {
	a, b := New(7), New(7)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "BouncyDiverger", Normalize("Bouncy Diverger"))
	assert.Equal(t, "BouncyDiverger", Normalize("  bouncy_diverger "))
	assert.Equal(t, "RSIBounce2", Normalize("RSI-bounce-2"))
	assert.Equal(t, "", Normalize("!!!"))
	assert.Equal(t, "", Normalize(""))
}
