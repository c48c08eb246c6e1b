package spantree

import (
	"fmt"
	"strconv"
	"strings"
)

// handleUID introduces a new user: the eight fixed fields,
// umode and cmode tokens applied in the same two-token call the wire
// format carries them in, and a trailing realname.
func handleUID(c *Core, source string, params []string) ([]HookEvent, error) {
	if len(params) < 10 {
		return nil, fmt.Errorf("%w: short UID line", ErrProtocolError)
	}
	uid, ts, nick, realhost, host, ident, ip := params[0], params[1], params[2], params[3], params[4], params[5], params[6]
	realname := params[len(params)-1]

	tsInt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad UID ts %q", ErrProtocolError, ts)
	}

	u := &User{
		UID: uid, Nick: nick, TS: tsInt,
		Ident: ident, Host: host, RealHost: realhost, IP: ip, RealName: realname,
	}
	if err := c.Net.AddUser(u); err != nil {
		return nil, err
	}
	changes := c.Net.Vocab.ParseModes(false, []string{params[8], params[9]})
	ApplyUserModes(u, changes)

	return single("UID", map[string]any{
		"uid": uid, "ts": ts, "nick": nick, "realhost": realhost,
		"host": host, "ident": ident, "ip": ip,
	})
}

// handleMode applies a user mode change.
func handleMode(c *Core, source string, params []string) ([]HookEvent, error) {
	if len(params) < 2 {
		return nil, fmt.Errorf("%w: short MODE line", ErrProtocolError)
	}
	target := params[0]
	u, ok := c.Net.User(target)
	if !ok {
		return nil, fmt.Errorf("%w: MODE target %q", ErrUnknownTarget, target)
	}
	changes := c.Net.Vocab.ParseModes(false, params[1:])
	ApplyUserModes(u, changes)
	return single("MODE", map[string]any{"target": target, "modes": changes})
}

// handleOpertype records the source user's opertype, applies umode
// +o, and emits PYLINK_CLIENT_OPERED alongside the usual MODE hook
// the oper-up: InspIRCd has no separate MODE line for it.
func handleOpertype(c *Core, source string, params []string) ([]HookEvent, error) {
	if len(params) < 1 {
		return nil, fmt.Errorf("%w: empty OPERTYPE line", ErrProtocolError)
	}
	u, ok := c.Net.User(source)
	if !ok {
		return nil, fmt.Errorf("%w: OPERTYPE from %q", ErrUnknownTarget, source)
	}
	opertype := strings.ReplaceAll(params[0], "_", " ")
	u.OperType = opertype
	changes := []ModeChange{{Add: true, Letter: 'o'}}
	ApplyUserModes(u, changes)
	return []HookEvent{
		{Command: "PYLINK_CLIENT_OPERED", Payload: map[string]any{"text": opertype}},
		{Command: "MODE", Payload: map[string]any{"target": source, "modes": changes}},
	}, nil
}

// handleFIdent applies a remote ident change to the source user.
func handleFIdent(c *Core, source string, params []string) ([]HookEvent, error) {
	if len(params) < 1 {
		return nil, fmt.Errorf("%w: empty FIDENT line", ErrProtocolError)
	}
	u, ok := c.Net.User(source)
	if !ok {
		return nil, fmt.Errorf("%w: FIDENT from %q", ErrUnknownTarget, source)
	}
	u.Ident = params[0]
	return single("FIDENT", map[string]any{"target": source, "newident": params[0]})
}

// handleFHost applies a remote hostname change to the source user.
func handleFHost(c *Core, source string, params []string) ([]HookEvent, error) {
	if len(params) < 1 {
		return nil, fmt.Errorf("%w: empty FHOST line", ErrProtocolError)
	}
	u, ok := c.Net.User(source)
	if !ok {
		return nil, fmt.Errorf("%w: FHOST from %q", ErrUnknownTarget, source)
	}
	u.Host = params[0]
	return single("FHOST", map[string]any{"target": source, "newhost": params[0]})
}

// handleFName applies a remote realname/gecos change to the source user.
func handleFName(c *Core, source string, params []string) ([]HookEvent, error) {
	if len(params) < 1 {
		return nil, fmt.Errorf("%w: empty FNAME line", ErrProtocolError)
	}
	u, ok := c.Net.User(source)
	if !ok {
		return nil, fmt.Errorf("%w: FNAME from %q", ErrUnknownTarget, source)
	}
	u.RealName = params[0]
	return single("FNAME", map[string]any{"target": source, "newgecos": params[0]})
}

// handleIdle replies to a remote WHOIS idle-time query with the
// target's introduction ts and a literal 0 idle-seconds field. It
// emits no hook.
func handleIdle(c *Core, source string, params []string) ([]HookEvent, error) {
	if len(params) < 1 {
		return nil, fmt.Errorf("%w: empty IDLE line", ErrProtocolError)
	}
	targetUID := params[0]
	target, ok := c.Net.User(targetUID)
	if !ok {
		return nil, fmt.Errorf("%w: IDLE target %q", ErrUnknownTarget, targetUID)
	}
	if c.sender != nil {
		reply := &Message{
			Prefix: targetUID, Command: "IDLE",
			Params: []string{source, strconv.FormatInt(target.TS, 10), "0"},
		}
		c.sender.Send(reply.String())
	}
	return nil, nil
}

// handleAway sets or clears the source user's away status.
func handleAway(c *Core, source string, params []string) ([]HookEvent, error) {
	u, ok := c.Net.User(source)
	if !ok {
		return nil, fmt.Errorf("%w: AWAY from %q", ErrUnknownTarget, source)
	}
	if len(params) >= 2 {
		u.Away = params[len(params)-1]
		u.AwaySet = true
		return single("AWAY", map[string]any{"text": u.Away, "ts": params[0]})
	}
	u.Away = ""
	u.AwaySet = false
	return single("AWAY", map[string]any{"text": ""})
}
