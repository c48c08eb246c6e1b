package spantree

import (
	"fmt"
	"strconv"
	"strings"
)

// handleFJoin is InspIRCd's combined burst/regular join: it
// reconciles the channel TS, applies the channel modes
// unconditionally, then adds each listed member and, only if the
// incoming TS did not lose the reconciliation, applies their prefix
// modes too.
func handleFJoin(c *Core, source string, params []string) ([]HookEvent, error) {
	if len(params) < 4 {
		return nil, fmt.Errorf("%w: short FJOIN line", ErrProtocolError)
	}
	name := params[0]
	theirTS, err := strconv.ParseInt(params[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad FJOIN ts %q", ErrProtocolError, params[1])
	}
	modeFields := params[2 : len(params)-1]
	userList := strings.Fields(params[len(params)-1])

	ch := c.Net.Channel(name, theirTS)
	outcome := c.Net.ReconcileChannelTS(ch, theirTS)

	changes := c.Net.Vocab.ParseModes(true, modeFields)
	ApplyChannelModes(ch, c.Net.Vocab, changes)

	var uids []string
	for _, entry := range userList {
		prefixes, uid, ok := strings.Cut(entry, ",")
		if !ok {
			uid, prefixes = entry, ""
		}
		u, ok := c.Net.User(uid)
		if !ok {
			continue
		}
		c.Net.JoinUserToChannel(u, ch)
		uids = append(uids, uid)
		if outcome != TSWon {
			for i := 0; i < len(prefixes); i++ {
				ApplyChannelModes(ch, c.Net.Vocab, []ModeChange{{Add: true, Letter: prefixes[i], Arg: uid}})
			}
		}
	}

	return single("FJOIN", map[string]any{
		"channel": name, "users": uids, "modes": changes, "ts": theirTS,
	})
}

// handleFMode applies a channel mode change and returns the
// pre-mutation channel alongside the change vector. It reconciles the
// channel TS first, through the same primitive every channel handler
// uses; a losing their_ts still applies (the
// loser's state was just cleared), a tying their_ts merges, and a
// winning their_ts leaves our modes authoritative and discards the
// incoming change vector's effect on the store (it is still returned
// in the payload for hook consumers).
func handleFMode(c *Core, source string, params []string) ([]HookEvent, error) {
	if len(params) < 3 {
		return nil, fmt.Errorf("%w: short FMODE line", ErrProtocolError)
	}
	name := params[0]
	ts, err := strconv.ParseInt(params[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad FMODE ts %q", ErrProtocolError, params[1])
	}
	ch := c.Net.Channel(name, ts)
	oldchan := ch.Clone()
	outcome := c.Net.ReconcileChannelTS(ch, ts)

	changes := c.Net.Vocab.ParseModes(true, params[2:])
	if outcome != TSWon {
		ApplyChannelModes(ch, c.Net.Vocab, changes)
	}

	return single("FMODE", map[string]any{
		"target": name, "modes": changes, "ts": ch.TS, "oldchan": oldchan,
	})
}

// handleFTopic overwrites a channel's topic on burst (also used for
// SVSTOPIC, which shares the same argument shape).
func handleFTopic(c *Core, source string, params []string) ([]HookEvent, error) {
	if len(params) < 4 {
		return nil, fmt.Errorf("%w: short FTOPIC line", ErrProtocolError)
	}
	name := params[0]
	ts := params[1]
	setter := params[2]
	topic := params[len(params)-1]

	ch, ok := c.Net.LookupChannel(name)
	if !ok {
		tsInt, _ := strconv.ParseInt(ts, 10, 64)
		ch = c.Net.Channel(name, tsInt)
	}
	ch.Topic = topic
	ch.TopicSet = true

	return single("FTOPIC", map[string]any{"channel": name, "setter": setter, "ts": ts, "topic": topic})
}

// handleInvite is a pure notification; it mutates no state.
func handleInvite(c *Core, source string, params []string) ([]HookEvent, error) {
	if len(params) < 2 {
		return nil, fmt.Errorf("%w: short INVITE line", ErrProtocolError)
	}
	return single("INVITE", map[string]any{"target": params[0], "channel": params[1]})
}

// handleEncap recognizes ENCAP * KNOCK and routes it to the Hook Bus
// under the KNOCK name via parse_as; any other subcommand is
// silently ignored, matching InspIRCd's independence of ENCAP
// propagation from subcommand understanding.
func handleEncap(c *Core, source string, params []string) ([]HookEvent, error) {
	if len(params) < 2 {
		return nil, nil
	}
	targetmask, sub := params[0], params[1]
	if targetmask != "*" || sub != "KNOCK" {
		return nil, nil
	}
	if len(params) < 4 {
		return nil, fmt.Errorf("%w: short ENCAP KNOCK line", ErrProtocolError)
	}
	channel := params[2]
	text := params[len(params)-1]
	return single("KNOCK", map[string]any{"parse_as": "KNOCK", "channel": channel, "text": text})
}
