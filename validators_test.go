package spantree_test

import (
	"testing"

	"github.com/presbrey/spantree"
	"github.com/stretchr/testify/assert"
)

func TestIsNickSeedScenarios(t *testing.T) {
	assert.False(t, spantree.IsNick("abcdefgh", 3))
	assert.True(t, spantree.IsNick("aBcdefgh", 30))
	assert.False(t, spantree.IsNick("9PYAAAAAB", 0), "leading digit is rejected")
	assert.True(t, spantree.IsNick(`_9PYAAAAAB\`, 0))
}

func TestIsNickRejectsEmpty(t *testing.T) {
	assert.False(t, spantree.IsNick("", 0))
}

func TestIsNickUnboundedWhenNicklenZero(t *testing.T) {
	assert.True(t, spantree.IsNick("a_very_long_nickname_indeed", 0))
}

func TestIsServerNameSeedScenarios(t *testing.T) {
	assert.True(t, spantree.IsServerName("services."))
	assert.False(t, spantree.IsServerName(".s.s.s"))
	assert.True(t, spantree.IsServerName("pylink.overdrive.pw"))
}

func TestIsServerNameRejectsWhitespaceAndEmpty(t *testing.T) {
	assert.False(t, spantree.IsServerName(""))
	assert.False(t, spantree.IsServerName("no dots here"))
	assert.False(t, spantree.IsServerName("nodotsatall"))
}

func TestIsChannel(t *testing.T) {
	assert.True(t, spantree.IsChannel("#chat"))
	assert.False(t, spantree.IsChannel("chat"))
	assert.False(t, spantree.IsChannel(""))
}
