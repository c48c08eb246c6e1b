package spantree_test

import (
	"testing"

	"github.com/presbrey/spantree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOutboundCore(t *testing.T) (*spantree.Core, *fakeSender, *spantree.Network) {
	return newConnectedCore(t)
}

func TestSpawnClientEmitsUIDAndOpertype(t *testing.T) {
	core, sender, net := newOutboundCore(t)

	u, err := core.SpawnClient("alice", "ident", "host.example", "", []spantree.ModeChange{{Add: true, Letter: 'o'}}, "", "1.2.3.4", "Alice Example", 1423790400, "Network Admin")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Nick)
	assert.True(t, spantree.HasUserMode(u, 'o'))

	require.Len(t, sender.lines, 2)
	assert.Contains(t, sender.lines[0], "UID")
	assert.Contains(t, sender.lines[0], "alice")
	assert.Equal(t, ":"+u.UID+" OPERTYPE Network_Admin", sender.lines[1])

	_, ok := net.User(u.UID)
	assert.True(t, ok)
}

func TestSpawnClientRejectsUnknownServer(t *testing.T) {
	core, _, _ := newOutboundCore(t)
	_, err := core.SpawnClient("bob", "ident", "host.example", "", nil, "9ZZ", "1.2.3.4", "Bob", 0, "")
	assert.ErrorIs(t, err, spantree.ErrNotInternal)
}

func TestSpawnServerAllocatesSIDAndEmitsIntroduction(t *testing.T) {
	core, sender, net := newOutboundCore(t)

	sid, err := core.SpawnServer("leaf.example.net", "", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, sid)

	srv, ok := net.Server(sid)
	require.True(t, ok)
	assert.True(t, srv.IsInternal)
	assert.Equal(t, "leaf.example.net", srv.Name)

	require.Len(t, sender.lines, 2)
	assert.Contains(t, sender.lines[0], "SERVER leaf.example.net")
	assert.Equal(t, ":"+sid+" ENDBURST", sender.lines[1])
}

func TestSpawnServerRejectsBadName(t *testing.T) {
	core, _, _ := newOutboundCore(t)
	_, err := core.SpawnServer("no-dots-here", "", "", "")
	assert.ErrorIs(t, err, spantree.ErrInvalidArgument)
}

func TestJoinClientEmitsFJoinAndJoinsStore(t *testing.T) {
	core, sender, net := newOutboundCore(t)
	u, err := core.SpawnClient("alice", "ident", "host.example", "", nil, "", "1.2.3.4", "Alice", 0, "")
	require.NoError(t, err)

	err = core.JoinClient(u.UID, "#chat")
	require.NoError(t, err)

	ch, ok := net.LookupChannel("#chat")
	require.True(t, ok)
	_, isMember := ch.Users[u.UID]
	assert.True(t, isMember)

	last := sender.lines[len(sender.lines)-1]
	assert.Contains(t, last, "FJOIN #chat")
	assert.Contains(t, last, ","+u.UID)
}

func TestJoinClientRejectsExternalUID(t *testing.T) {
	core, _, net := newOutboundCore(t)
	require.NoError(t, net.AddUser(&spantree.User{UID: "70MAAAAAA", Nick: "remote"}))
	err := core.JoinClient("70MAAAAAA", "#chat")
	assert.ErrorIs(t, err, spantree.ErrNotInternal)
}

func TestSJoinServerBurstsMembersWithPrefixes(t *testing.T) {
	core, sender, net := newOutboundCore(t)
	require.NoError(t, net.AddUser(&spantree.User{UID: "70MAAAAAA", Nick: "alice"}))
	require.NoError(t, net.AddUser(&spantree.User{UID: "70MAAAAAB", Nick: "bob"}))

	err := core.SJoinServer("1AA", "#chat", [][2]string{{"o", "70MAAAAAA"}, {"", "70MAAAAAB"}}, 1423790411)
	require.NoError(t, err)

	ch, ok := net.LookupChannel("#chat")
	require.True(t, ok)
	_, hasOp := ch.PrefixModes["70MAAAAAA"]['o']
	assert.True(t, hasOp)

	last := sender.lines[len(sender.lines)-1]
	assert.Contains(t, last, "FJOIN #chat")
	assert.Contains(t, last, "o,70MAAAAAA")
	assert.Contains(t, last, ",70MAAAAAB")
}

func TestSJoinServerRejectsEmptyUserList(t *testing.T) {
	core, _, _ := newOutboundCore(t)
	err := core.SJoinServer("1AA", "#chat", nil, 0)
	assert.ErrorIs(t, err, spantree.ErrInvalidArgument)
}

func TestSJoinServerRejectsExternalServer(t *testing.T) {
	core, _, _ := newOutboundCore(t)
	err := core.SJoinServer("70M", "#chat", [][2]string{{"", "70MAAAAAA"}}, 0)
	assert.ErrorIs(t, err, spantree.ErrNotInternal)
}

func TestModeClientSendsFModeForChannel(t *testing.T) {
	core, sender, net := newOutboundCore(t)
	u, err := core.SpawnClient("alice", "ident", "host.example", "", nil, "", "1.2.3.4", "Alice", 0, "")
	require.NoError(t, err)
	net.Channel("#chat", 1423790400)

	err = core.ModeClient(u.UID, "#chat", []spantree.ModeChange{{Add: true, Letter: 'n'}}, 0)
	require.NoError(t, err)

	last := sender.lines[len(sender.lines)-1]
	assert.Contains(t, last, "FMODE #chat")
	assert.Contains(t, last, "+n")
}

func TestModeServerSendsModeForUserAndOpersUp(t *testing.T) {
	core, sender, net := newOutboundCore(t)
	require.NoError(t, net.AddUser(&spantree.User{UID: "70MAAAAAB", Nick: "bob"}))

	err := core.ModeServer("1AA", "70MAAAAAB", []spantree.ModeChange{{Add: true, Letter: 'o'}}, 0)
	require.NoError(t, err)

	u, _ := net.User("70MAAAAAB")
	assert.True(t, spantree.HasUserMode(u, 'o'))
	assert.NotEmpty(t, u.OperType)

	assert.Contains(t, sender.lines, ":1AA MODE 70MAAAAAB +o")
}

func TestModeClientRejectsUnknownChannel(t *testing.T) {
	core, _, _ := newOutboundCore(t)
	u, err := core.SpawnClient("alice", "ident", "host.example", "", nil, "", "1.2.3.4", "Alice", 0, "")
	require.NoError(t, err)
	err = core.ModeClient(u.UID, "#nosuch", []spantree.ModeChange{{Add: true, Letter: 'n'}}, 0)
	assert.ErrorIs(t, err, spantree.ErrUnknownTarget)
}

func TestKillClientRemovesLocalTargetImmediately(t *testing.T) {
	core, sender, net := newOutboundCore(t)
	killer, err := core.SpawnClient("opsvc", "opsvc", "host.example", "", nil, "", "1.2.3.4", "OpServ", 0, "")
	require.NoError(t, err)
	victim, err := core.SpawnClient("victim", "ident", "host.example", "", nil, "", "1.2.3.4", "Victim", 0, "")
	require.NoError(t, err)

	err = core.KillClient(killer.UID, victim.UID, "bye")
	require.NoError(t, err)

	_, ok := net.User(victim.UID)
	assert.False(t, ok)
	assert.Contains(t, sender.lines[len(sender.lines)-1], "KILL "+victim.UID+" :bye")
}

func TestKillClientRejectsExternalKiller(t *testing.T) {
	core, _, net := newOutboundCore(t)
	require.NoError(t, net.AddUser(&spantree.User{UID: "70MAAAAAA", Nick: "remote"}))
	err := core.KillClient("70MAAAAAA", "70MAAAAAA", "bye")
	assert.ErrorIs(t, err, spantree.ErrNotInternal)
}

func TestSquitServerSplitsSpawnedServerAndEmitsHook(t *testing.T) {
	core, sender, net := newOutboundCore(t)
	recorder := &fakeHookRecorder{}
	recorder.subscribe(core.Hooks)

	sid, err := core.SpawnServer("leaf.example.net", "", "", "")
	require.NoError(t, err)
	u, err := core.SpawnClient("leafsvc", "ident", "host.example", "", nil, sid, "1.2.3.4", "Leaf Service", 0, "")
	require.NoError(t, err)

	require.NoError(t, core.SquitServer("1AA", sid, "resync"))

	_, ok := net.Server(sid)
	assert.False(t, ok)
	_, ok = net.User(u.UID)
	assert.False(t, ok)
	assert.Contains(t, sender.lines, ":1AA SQUIT "+sid+" :resync")

	ev := recorder.last()
	assert.Equal(t, "SQUIT", ev.Command)
	assert.Equal(t, sid, ev.Data["target"])
	assert.Contains(t, ev.Data["nicks"], "leafsvc")
}

func TestSquitServerRejectsExternalSource(t *testing.T) {
	core, _, _ := newOutboundCore(t)
	err := core.SquitServer("70M", "1AB", "nope")
	assert.ErrorIs(t, err, spantree.ErrNotInternal)
}

func TestSquitServerRejectsUnknownTarget(t *testing.T) {
	core, _, _ := newOutboundCore(t)
	err := core.SquitServer("1AA", "9ZZ", "nope")
	assert.ErrorIs(t, err, spantree.ErrUnknownTarget)
}

func TestTopicServerSetsTopicAndEmitsFTopic(t *testing.T) {
	core, sender, net := newOutboundCore(t)
	net.Channel("#chat", 1423790400)

	err := core.TopicServer("1AA", "#chat", "welcome")
	require.NoError(t, err)

	ch, _ := net.LookupChannel("#chat")
	assert.Equal(t, "welcome", ch.Topic)
	assert.True(t, ch.TopicSet)
	assert.Contains(t, sender.lines[len(sender.lines)-1], "FTOPIC #chat")
}

func TestTopicServerRejectsUnknownChannel(t *testing.T) {
	core, _, _ := newOutboundCore(t)
	err := core.TopicServer("1AA", "#nosuch", "welcome")
	assert.ErrorIs(t, err, spantree.ErrUnknownTarget)
}

func TestInviteClientEmitsInvite(t *testing.T) {
	core, sender, _ := newOutboundCore(t)
	u, err := core.SpawnClient("alice", "ident", "host.example", "", nil, "", "1.2.3.4", "Alice", 0, "")
	require.NoError(t, err)

	err = core.InviteClient(u.UID, "70MAAAAAB", "#chat")
	require.NoError(t, err)
	assert.Equal(t, ":"+u.UID+" INVITE 70MAAAAAB #chat", sender.lines[len(sender.lines)-1])
}

func TestInviteClientRejectsExternalUID(t *testing.T) {
	core, _, net := newOutboundCore(t)
	require.NoError(t, net.AddUser(&spantree.User{UID: "70MAAAAAA", Nick: "remote"}))
	err := core.InviteClient("70MAAAAAA", "70MAAAAAB", "#chat")
	assert.ErrorIs(t, err, spantree.ErrNotInternal)
}

func TestKnockClientEmitsEncapKnock(t *testing.T) {
	core, sender, _ := newOutboundCore(t)
	u, err := core.SpawnClient("alice", "ident", "host.example", "", nil, "", "1.2.3.4", "Alice", 0, "")
	require.NoError(t, err)

	err = core.KnockClient(u.UID, "#chat", "let me in")
	require.NoError(t, err)
	assert.Equal(t, ":"+u.UID+" ENCAP * KNOCK #chat :let me in", sender.lines[len(sender.lines)-1])
}

func TestAwayClientSetsAndClears(t *testing.T) {
	core, sender, net := newOutboundCore(t)
	u, err := core.SpawnClient("alice", "ident", "host.example", "", nil, "", "1.2.3.4", "Alice", 0, "")
	require.NoError(t, err)

	require.NoError(t, core.AwayClient(u.UID, "lunch"))
	u, _ = net.User(u.UID)
	assert.Equal(t, "lunch", u.Away)
	assert.True(t, u.AwaySet)
	assert.Contains(t, sender.lines[len(sender.lines)-1], "AWAY")

	require.NoError(t, core.AwayClient(u.UID, ""))
	u, _ = net.User(u.UID)
	assert.Equal(t, "", u.Away)
	assert.False(t, u.AwaySet)
	assert.Equal(t, ":"+u.UID+" AWAY", sender.lines[len(sender.lines)-1])
}

func TestAwayClientRejectsExternalUID(t *testing.T) {
	core, _, net := newOutboundCore(t)
	require.NoError(t, net.AddUser(&spantree.User{UID: "70MAAAAAA", Nick: "remote"}))
	err := core.AwayClient("70MAAAAAA", "lunch")
	assert.ErrorIs(t, err, spantree.ErrNotInternal)
}

func TestPingServerDefaultsToLocalAndUplink(t *testing.T) {
	core, sender, _ := newOutboundCore(t)
	core.PingServer("", "")
	assert.Equal(t, ":1AA PING 1AA 70M", sender.lines[len(sender.lines)-1])
}

func TestUpdateClientEmitsFieldSpecificLine(t *testing.T) {
	core, sender, net := newOutboundCore(t)
	u, err := core.SpawnClient("alice", "ident", "old.example", "", nil, "", "1.2.3.4", "Alice", 0, "")
	require.NoError(t, err)

	require.NoError(t, core.UpdateClient(u.UID, "host", "new.example"))
	u, _ = net.User(u.UID)
	assert.Equal(t, "new.example", u.Host)
	assert.Equal(t, ":"+u.UID+" FHOST new.example", sender.lines[len(sender.lines)-1])

	require.NoError(t, core.UpdateClient(u.UID, "GECOS", "New Name"))
	u, _ = net.User(u.UID)
	assert.Equal(t, "New Name", u.RealName)
	assert.Equal(t, ":"+u.UID+" FNAME :New Name", sender.lines[len(sender.lines)-1])
}

func TestUpdateClientRejectsUnknownField(t *testing.T) {
	core, _, _ := newOutboundCore(t)
	u, err := core.SpawnClient("alice", "ident", "host.example", "", nil, "", "1.2.3.4", "Alice", 0, "")
	require.NoError(t, err)
	err = core.UpdateClient(u.UID, "nope", "x")
	assert.ErrorIs(t, err, spantree.ErrNotImplemented)
}

func TestUpdateClientRejectsExternalUID(t *testing.T) {
	core, _, net := newOutboundCore(t)
	require.NoError(t, net.AddUser(&spantree.User{UID: "70MAAAAAA", Nick: "remote"}))
	err := core.UpdateClient("70MAAAAAA", "HOST", "new.example")
	assert.ErrorIs(t, err, spantree.ErrNotInternal)
}

func TestNumericServerIsUnimplemented(t *testing.T) {
	core, _, _ := newOutboundCore(t)
	err := core.NumericServer("1AA", "311", "70MAAAAAA", "text")
	assert.ErrorIs(t, err, spantree.ErrNotImplemented)
}
