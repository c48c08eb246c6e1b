package spantree_test

import (
	"testing"

	"github.com/presbrey/spantree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldCaseMapping(t *testing.T) {
	assert.Equal(t, spantree.Fold("#FOO"), spantree.Fold("#foo"))
	assert.Equal(t, "#{a}", spantree.Fold("#[a]"))
	assert.Equal(t, "#|a^", spantree.Fold("#\\A~"))
}

func newTestNetwork() *spantree.Network {
	return spantree.NewNetwork("70M", "irc.example.net", "sendpass", "recvpass", "test network")
}

func TestNetworkSeedsLocalServerInternal(t *testing.T) {
	net := newTestNetwork()
	srv, ok := net.Server("70M")
	require.True(t, ok)
	assert.True(t, srv.IsInternal)
	assert.Equal(t, "", srv.UplinkSID)
}

func TestNetworkAddServerRejectsDuplicateSID(t *testing.T) {
	net := newTestNetwork()
	_, err := net.AddServer("70M", "dup.example.net", "dup", "", false)
	assert.ErrorIs(t, err, spantree.ErrInvalidArgument)
}

func TestNetworkAddUserRequiresKnownServer(t *testing.T) {
	net := newTestNetwork()
	err := net.AddUser(&spantree.User{UID: "9ZZAAAAAA", Nick: "ghost"})
	assert.ErrorIs(t, err, spantree.ErrUnknownTarget)
}

func TestRemoveServerCascadeRemovesDescendantsAndUsers(t *testing.T) {
	net := newTestNetwork()
	_, err := net.AddServer("1AA", "leaf1.example.net", "leaf1", "70M", false)
	require.NoError(t, err)
	_, err = net.AddServer("1AB", "leaf2.example.net", "leaf2", "1AA", false)
	require.NoError(t, err)
	require.NoError(t, net.AddUser(&spantree.User{UID: "1ABAAAAAA", Nick: "victim"}))

	servers, users := net.RemoveServerCascade("1AA")
	assert.ElementsMatch(t, []string{"1AA", "1AB"}, servers)
	require.Len(t, users, 1)
	assert.Equal(t, "victim", users[0].Nick)

	_, ok := net.Server("1AA")
	assert.False(t, ok)
	_, ok = net.Server("1AB")
	assert.False(t, ok)
	_, ok = net.User("1ABAAAAAA")
	assert.False(t, ok)
}

func TestChannelImplicitCreationAndCaseFold(t *testing.T) {
	net := newTestNetwork()
	ch := net.Channel("#Chat", 100)
	found, ok := net.LookupChannel("#cHAT")
	require.True(t, ok)
	assert.Same(t, ch, found)
}

func ingestBasicChanModes(t *testing.T, net *spantree.Network) {
	t.Helper()
	require.NoError(t, net.Vocab.IngestCapabilities([]string{
		"PROTOCOL=1202", "CHANMODES=b,k,l,imnt", "PREFIX=(ov)@+",
	}))
}

func TestReconcileChannelTSLost(t *testing.T) {
	net := newTestNetwork()
	ingestBasicChanModes(t, net)
	ch := net.Channel("#chat", 1000)
	ch.Modes['n'] = []string{""}
	ch.PrefixModes["70MAAAAAA"] = map[byte]struct{}{'o': {}}

	outcome := net.ReconcileChannelTS(ch, 500)
	assert.Equal(t, spantree.TSLost, outcome)
	assert.Equal(t, int64(500), ch.TS)
	assert.Empty(t, ch.Modes)
	assert.Empty(t, ch.PrefixModes["70MAAAAAA"])
}

func TestReconcileChannelTSTie(t *testing.T) {
	net := newTestNetwork()
	ingestBasicChanModes(t, net)
	ch := net.Channel("#chat", 1000)
	outcome := net.ReconcileChannelTS(ch, 1000)
	assert.Equal(t, spantree.TSTie, outcome)
	assert.Equal(t, int64(1000), ch.TS)
}

func TestReconcileChannelTSWon(t *testing.T) {
	net := newTestNetwork()
	ingestBasicChanModes(t, net)
	ch := net.Channel("#chat", 1000)
	ch.Modes['n'] = []string{""}
	outcome := net.ReconcileChannelTS(ch, 2000)
	assert.Equal(t, spantree.TSWon, outcome)
	assert.Equal(t, int64(1000), ch.TS, "our TS must not be raised")
	assert.Contains(t, ch.Modes, byte('n'), "our modes survive when we win")
}

func TestRemoveUserDetachesFromChannelsAndServer(t *testing.T) {
	net := newTestNetwork()
	u := &spantree.User{UID: "70MAAAAAA", Nick: "alice"}
	require.NoError(t, net.AddUser(u))
	ch := net.Channel("#chat", 100)
	net.JoinUserToChannel(u, ch)

	net.RemoveUser("70MAAAAAA")
	_, ok := net.User("70MAAAAAA")
	assert.False(t, ok)
	_, stillMember := ch.Users["70MAAAAAA"]
	assert.False(t, stillMember)

	srv, _ := net.Server("70M")
	_, stillOwned := srv.Users["70MAAAAAA"]
	assert.False(t, stillOwned)
}
