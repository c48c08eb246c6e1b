package spantree

import (
	"fmt"
	"strings"
	"time"
)

// SpawnClient allocates a UID under server's UID generator, records
// the user, and emits the UID introduction line. If modes carries
// umode 'o', it follows with an OPERTYPE line: InspIRCd
// requires that special command to recognize any non-burst oper-up.
func (c *Core) SpawnClient(nick, ident, host, realhost string, modes []ModeChange, server, ip, realname string, ts int64, opertype string) (*User, error) {
	c.Net.Lock()
	defer c.Net.Unlock()

	if server == "" {
		server = c.Net.LocalSID
	}
	if !c.Net.IsInternalServer(server) {
		return nil, fmt.Errorf("%w: server %q", ErrNotInternal, server)
	}
	uid, err := c.UIDGeneratorFor(server).Next()
	if err != nil {
		return nil, err
	}
	if ts == 0 {
		ts = time.Now().Unix()
	}
	if realhost == "" {
		realhost = host
	}

	u := &User{
		UID: uid, Nick: nick, TS: ts,
		Ident: ident, Host: host, RealHost: realhost, IP: ip, RealName: realname,
	}
	if err := c.Net.AddUser(u); err != nil {
		return nil, err
	}
	ApplyUserModes(u, modes)

	line := &Message{
		Prefix: server, Command: "UID",
		Params: []string{uid, itoa(ts), nick, realhost, host, ident, ip, itoa(ts), JoinModes(modes), "+"},
	}
	c.sender.Send(line.String() + " :" + realname)

	if HasUserMode(u, 'o') {
		c.operUp(u, opertype)
	}
	return u, nil
}

// operUp sends the OPERTYPE line InspIRCd requires to recognize a
// non-burst oper-up. Caller must hold the store lock.
func (c *Core) operUp(u *User, opertype string) {
	if opertype == "" {
		if u.OperType != "" {
			opertype = u.OperType
		} else {
			opertype = "IRC Operator"
		}
	}
	u.OperType = opertype
	c.sender.Send(fmt.Sprintf(":%s OPERTYPE %s", u.UID, strings.ReplaceAll(opertype, " ", "_")))
}

// SpawnServer emits a new SERVER introduction followed by ENDBURST,
// auto-allocating a SID if sid is "".
func (c *Core) SpawnServer(name, sid, uplink, desc string) (string, error) {
	c.Net.Lock()
	defer c.Net.Unlock()

	if uplink == "" {
		uplink = c.Net.LocalSID
	}
	name = strings.ToLower(name)
	if desc == "" {
		desc = c.Net.ServerDesc
	}
	if !IsServerName(name) {
		return "", fmt.Errorf("%w: server name %q", ErrInvalidArgument, name)
	}
	if !c.Net.IsInternalServer(uplink) {
		return "", fmt.Errorf("%w: uplink %q", ErrNotInternal, uplink)
	}
	if sid == "" {
		next, err := c.sidGen.Next()
		if err != nil {
			return "", err
		}
		sid = next
	}
	if _, err := c.Net.AddServer(sid, name, desc, uplink, true); err != nil {
		return "", err
	}

	c.sender.Send(fmt.Sprintf(":%s SERVER %s * 1 %s :%s", uplink, name, sid, desc))
	c.sender.Send(fmt.Sprintf(":%s ENDBURST", sid))
	return sid, nil
}

// JoinClient joins one internal client to a channel via FJOIN, the
// InspIRCd idiom for both burst and regular joins; it strips
// list-valued (class A) modes from the mode segment.
func (c *Core) JoinClient(uid, channelName string) error {
	c.Net.Lock()
	defer c.Net.Unlock()

	if !c.Net.IsInternalClient(uid) {
		return fmt.Errorf("%w: client %q", ErrNotInternal, uid)
	}
	u, ok := c.Net.User(uid)
	if !ok {
		return fmt.Errorf("%w: client %q", ErrUnknownTarget, uid)
	}
	ch, ok := c.Net.LookupChannel(channelName)
	if !ok {
		ch = c.Net.Channel(channelName, time.Now().Unix())
	}
	c.Net.JoinUserToChannel(u, ch)

	modes := nonListModes(ch, c.Net.Vocab)
	c.sender.Send(fmt.Sprintf(":%s FJOIN %s %d %s :,%s", uid[:3], ch.Name, ch.TS, JoinModes(modes), uid))
	return nil
}

// SJoinServer bursts a group of (prefixes, uid) pairs into a channel
// on behalf of server, reconciling TS first.
func (c *Core) SJoinServer(server, channelName string, users [][2]string, ts int64) error {
	c.Net.Lock()
	defer c.Net.Unlock()

	if server == "" {
		server = c.Net.LocalSID
	}
	if !c.Net.IsInternalServer(server) {
		return fmt.Errorf("%w: server %q", ErrNotInternal, server)
	}
	if len(users) == 0 {
		return fmt.Errorf("%w: SJoinServer: no users", ErrInvalidArgument)
	}

	ch, ok := c.Net.LookupChannel(channelName)
	if !ok {
		ch = c.Net.Channel(channelName, ts)
	}
	origTS := ch.TS
	if ts == 0 {
		ts = origTS
	}
	outcome := c.Net.ReconcileChannelTS(ch, ts)

	var names []string
	for _, pair := range users {
		prefixes, uid := pair[0], pair[1]
		names = append(names, prefixes+","+uid)
		if u, ok := c.Net.User(uid); ok {
			c.Net.JoinUserToChannel(u, ch)
		}
		if outcome != TSWon {
			for i := 0; i < len(prefixes); i++ {
				ApplyChannelModes(ch, c.Net.Vocab, []ModeChange{{Add: true, Letter: prefixes[i], Arg: uid}})
			}
		}
	}

	modes := nonListModes(ch, c.Net.Vocab)
	c.sender.Send(fmt.Sprintf(":%s FJOIN %s %d %s :%s", server, ch.Name, ts, JoinModes(modes), strings.Join(names, " ")))
	return nil
}

// nonListModes returns ch's current non-class-A modes as a change
// vector, for the mode segment of FJOIN/SJOIN lines which must never
// carry list-valued modes.
func nonListModes(ch *Channel, vocab *ModeVocabulary) []ModeChange {
	var out []ModeChange
	for letter, vals := range ch.Modes {
		if vocab.classify(letter, true) == classA {
			continue
		}
		arg := ""
		if len(vals) > 0 {
			arg = vals[0]
		}
		out = append(out, ModeChange{Add: true, Letter: letter, Arg: arg, HasArg: arg != ""})
	}
	return out
}

// ModeClient sends mode changes originating from an internal client.
func (c *Core) ModeClient(uid, target string, changes []ModeChange, ts int64) error {
	c.Net.Lock()
	defer c.Net.Unlock()
	if !c.Net.IsInternalClient(uid) {
		return fmt.Errorf("%w: client %q", ErrNotInternal, uid)
	}
	return c.sendModes(uid, target, changes, ts)
}

// ModeServer sends mode changes originating from an internal server.
func (c *Core) ModeServer(sid, target string, changes []ModeChange, ts int64) error {
	c.Net.Lock()
	defer c.Net.Unlock()
	if !c.Net.IsInternalServer(sid) {
		return fmt.Errorf("%w: server %q", ErrNotInternal, sid)
	}
	return c.sendModes(sid, target, changes, ts)
}

// sendModes applies changes to target and emits FMODE (channel) or
// MODE (user). Caller must hold the store lock.
func (c *Core) sendModes(numeric, target string, changes []ModeChange, ts int64) error {
	if IsChannel(target) {
		ch, ok := c.Net.LookupChannel(target)
		if !ok {
			return fmt.Errorf("%w: channel %q", ErrUnknownTarget, target)
		}
		if ts == 0 {
			ts = ch.TS
		}
		ApplyChannelModes(ch, c.Net.Vocab, changes)
		c.sender.Send(fmt.Sprintf(":%s FMODE %s %d %s", numeric, target, ts, JoinModes(changes)))
		return nil
	}
	hasOp := false
	for _, ch := range changes {
		if ch.Add && ch.Letter == 'o' {
			hasOp = true
		}
	}
	u, ok := c.Net.User(target)
	if !ok {
		return fmt.Errorf("%w: user %q", ErrUnknownTarget, target)
	}
	if hasOp {
		c.operUp(u, "")
	}
	ApplyUserModes(u, changes)
	c.sender.Send(fmt.Sprintf(":%s MODE %s %s", numeric, target, JoinModes(changes)))
	return nil
}

// KillClient emits KILL from an internal client and, since the
// target is ours, removes the client record immediately (a remote
// kill instead waits for the remote QUIT).
func (c *Core) KillClient(uid, target, reason string) error {
	c.Net.Lock()
	defer c.Net.Unlock()
	if !c.Net.IsInternalClient(uid) {
		return fmt.Errorf("%w: client %q", ErrNotInternal, uid)
	}
	return c.sendKill(uid, target, reason)
}

// KillServer emits KILL from an internal server.
func (c *Core) KillServer(sid, target, reason string) error {
	c.Net.Lock()
	defer c.Net.Unlock()
	if !c.Net.IsInternalServer(sid) {
		return fmt.Errorf("%w: server %q", ErrNotInternal, sid)
	}
	return c.sendKill(sid, target, reason)
}

func (c *Core) sendKill(numeric, target, reason string) error {
	c.sender.Send(fmt.Sprintf(":%s KILL %s :%s", numeric, target, reason))
	if c.Net.IsInternalClient(target) {
		c.Net.RemoveUser(target)
	}
	return nil
}

// SquitServer splits target off the network on behalf of an internal
// server: it emits SQUIT and then runs the same cascade the inbound
// handler uses, so local and remote splits converge on one code path.
// The resulting SQUIT hook fires after the critical section closes.
func (c *Core) SquitServer(source, target, reason string) error {
	if reason == "" {
		reason = "No reason given"
	}
	c.Net.Lock()
	if !c.Net.IsInternalServer(source) {
		c.Net.Unlock()
		return fmt.Errorf("%w: server %q", ErrNotInternal, source)
	}
	if _, ok := c.Net.Server(target); !ok {
		c.Net.Unlock()
		return fmt.Errorf("%w: server %q", ErrUnknownTarget, target)
	}
	c.sender.Send(fmt.Sprintf(":%s SQUIT %s :%s", source, target, reason))
	events, err := handleSquit(c, source, []string{target, reason})
	c.Net.Unlock()
	if err != nil {
		return err
	}
	for _, ev := range events {
		c.Hooks.Emit(source, ev.Command, ev.Payload)
	}
	return nil
}

// TopicServer sends a topic change from an internal server, used
// typically on burst.
func (c *Core) TopicServer(sid, target, text string) error {
	c.Net.Lock()
	defer c.Net.Unlock()
	if !c.Net.IsInternalServer(sid) {
		return fmt.Errorf("%w: server %q", ErrNotInternal, sid)
	}
	srv, ok := c.Net.Server(sid)
	if !ok {
		return fmt.Errorf("%w: server %q", ErrUnknownTarget, sid)
	}
	ch, ok := c.Net.LookupChannel(target)
	if !ok {
		return fmt.Errorf("%w: channel %q", ErrUnknownTarget, target)
	}
	ts := time.Now().Unix()
	ch.Topic = text
	ch.TopicSet = true
	c.sender.Send(fmt.Sprintf(":%s FTOPIC %s %d %s :%s", sid, target, ts, srv.Name, text))
	return nil
}

// InviteClient sends an INVITE from an internal client.
func (c *Core) InviteClient(uid, target, channel string) error {
	c.Net.Lock()
	defer c.Net.Unlock()
	if !c.Net.IsInternalClient(uid) {
		return fmt.Errorf("%w: client %q", ErrNotInternal, uid)
	}
	c.sender.Send(fmt.Sprintf(":%s INVITE %s %s", uid, target, channel))
	return nil
}

// KnockClient sends a KNOCK from an internal client, encapsulated per
// the ENCAP * KNOCK convention.
func (c *Core) KnockClient(uid, channel, text string) error {
	c.Net.Lock()
	defer c.Net.Unlock()
	if !c.Net.IsInternalClient(uid) {
		return fmt.Errorf("%w: client %q", ErrNotInternal, uid)
	}
	c.sender.Send(fmt.Sprintf(":%s ENCAP * KNOCK %s :%s", uid, channel, text))
	return nil
}

// AwayClient sends an AWAY message from an internal client; an empty
// text clears away status.
func (c *Core) AwayClient(uid, text string) error {
	c.Net.Lock()
	defer c.Net.Unlock()
	if !c.Net.IsInternalClient(uid) {
		return fmt.Errorf("%w: client %q", ErrNotInternal, uid)
	}
	u, ok := c.Net.User(uid)
	if !ok {
		return fmt.Errorf("%w: client %q", ErrUnknownTarget, uid)
	}
	if text != "" {
		c.sender.Send(fmt.Sprintf(":%s AWAY %d :%s", uid, time.Now().Unix(), text))
		u.Away = text
		u.AwaySet = true
	} else {
		c.sender.Send(fmt.Sprintf(":%s AWAY", uid))
		u.Away = ""
		u.AwaySet = false
	}
	return nil
}

// PingServer sends a PING from source (defaulting to our SID) to
// target (defaulting to our uplink).
func (c *Core) PingServer(source, target string) {
	c.Net.RLock()
	if source == "" {
		source = c.Net.LocalSID
	}
	if target == "" {
		target = c.Net.Uplink()
	}
	c.Net.RUnlock()
	if source != "" && target != "" {
		c.sender.Send(fmt.Sprintf(":%s PING %s %s", source, source, target))
	}
}

// UpdateClient changes an internal client's ident, host, or
// realname/gecos, emitting FIDENT/FHOST/FNAME accordingly.
func (c *Core) UpdateClient(uid, field, text string) error {
	c.Net.Lock()
	defer c.Net.Unlock()
	if !c.Net.IsInternalClient(uid) {
		return fmt.Errorf("%w: client %q", ErrNotInternal, uid)
	}
	u, ok := c.Net.User(uid)
	if !ok {
		return fmt.Errorf("%w: client %q", ErrUnknownTarget, uid)
	}
	switch strings.ToUpper(field) {
	case "IDENT":
		u.Ident = text
		c.sender.Send(fmt.Sprintf(":%s FIDENT %s", uid, text))
	case "HOST":
		u.Host = text
		c.sender.Send(fmt.Sprintf(":%s FHOST %s", uid, text))
	case "REALNAME", "GECOS":
		u.RealName = text
		c.sender.Send(fmt.Sprintf(":%s FNAME :%s", uid, text))
	default:
		return fmt.Errorf("%w: changing field %q of a client is unsupported", ErrNotImplemented, field)
	}
	return nil
}

// NumericServer is unsupported: InspIRCd handles WHOIS locally, so
// there is no wire format for this operation in the source protocol.
func (c *Core) NumericServer(source, numeric, target, text string) error {
	return ErrNotImplemented
}

func itoa(n int64) string {
	return fmt.Sprintf("%d", n)
}
