package spantree_test

import (
	"testing"

	"github.com/presbrey/spantree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessageWithPrefixAndTrailing(t *testing.T) {
	msg, err := spantree.ParseMessage(":70M FJOIN #chat 1423790411 +nt :o,70MAAAAAA v,70MAAAAAB")
	require.NoError(t, err)
	assert.Equal(t, "70M", msg.Prefix)
	assert.Equal(t, "FJOIN", msg.Command)
	assert.Equal(t, []string{"#chat", "1423790411", "+nt", "o,70MAAAAAA v,70MAAAAAB"}, msg.Params)
}

func TestParseMessageNoPrefix(t *testing.T) {
	msg, err := spantree.ParseMessage("PING 70M irc.uplink")
	require.NoError(t, err)
	assert.Equal(t, "", msg.Prefix)
	assert.Equal(t, "PING", msg.Command)
	assert.Equal(t, []string{"70M", "irc.uplink"}, msg.Params)
}

func TestParseMessageNoTrailing(t *testing.T) {
	msg, err := spantree.ParseMessage(":70MAAAAAA MODE 70MAAAAAA +i")
	require.NoError(t, err)
	assert.Equal(t, []string{"+i"}, msg.Params)
}

func TestParseMessageOnlyFirstColonStartsTrailing(t *testing.T) {
	msg, err := spantree.ParseMessage(":70M PRIVMSG #chat :hello :world")
	require.NoError(t, err)
	assert.Equal(t, []string{"#chat", "hello :world"}, msg.Params)
}

func TestParseMessageUppercasesVerb(t *testing.T) {
	msg, err := spantree.ParseMessage(":70M fjoin #chat 1 +nt :")
	require.NoError(t, err)
	assert.Equal(t, "FJOIN", msg.Command)
}

func TestParseMessageRejectsEmptyLine(t *testing.T) {
	_, err := spantree.ParseMessage("")
	assert.ErrorIs(t, err, spantree.ErrProtocolError)

	_, err = spantree.ParseMessage(":onlyprefix")
	assert.ErrorIs(t, err, spantree.ErrProtocolError)
}

func TestMessageStringRoundTrip(t *testing.T) {
	msg := &spantree.Message{
		Prefix:  "70M",
		Command: "PING",
		Params:  []string{"70M", "70MAAAAAA"},
	}
	assert.Equal(t, ":70M PING 70M 70MAAAAAA", msg.String())

	withTrailing := &spantree.Message{
		Command: "AWAY",
		Params:  []string{""},
	}
	assert.Equal(t, "AWAY :", withTrailing.String())
}
