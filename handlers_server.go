package spantree

import (
	"fmt"
	"strings"
	"time"
)

// handleServer processes a post-registration SERVER line: a server
// already in the tree introducing another one beneath it.
func handleServer(c *Core, source string, params []string) ([]HookEvent, error) {
	if len(params) < 4 {
		return nil, fmt.Errorf("%w: short SERVER line", ErrProtocolError)
	}
	name := strings.ToLower(params[0])
	sid := params[3]
	desc := params[len(params)-1]
	if _, err := c.Net.AddServer(sid, name, desc, source, false); err != nil {
		return nil, err
	}
	return single("SERVER", map[string]any{"name": name, "sid": sid, "text": desc})
}

// handleSquit destroys the named server, every server descended from
// it, and every user on any of them.
func handleSquit(c *Core, source string, params []string) ([]HookEvent, error) {
	if len(params) < 1 {
		return nil, fmt.Errorf("%w: short SQUIT line", ErrProtocolError)
	}
	target := params[0]
	var reason string
	if len(params) > 1 {
		reason = params[len(params)-1]
	}

	removedServers, removedUsers := c.Net.RemoveServerCascade(target)
	uids := make([]string, len(removedUsers))
	nicks := make([]string, len(removedUsers))
	for i, u := range removedUsers {
		uids[i] = u.UID
		nicks[i] = u.Nick
	}
	return single("SQUIT", map[string]any{
		"target":  target,
		"text":    reason,
		"users":   uids,
		"nicks":   nicks,
		"servers": removedServers,
	})
}

// handlePing replies PONG dest source when dest names one of our
// internal servers. It emits no hook.
func handlePing(c *Core, source string, params []string) ([]HookEvent, error) {
	if len(params) < 2 {
		return nil, fmt.Errorf("%w: short PING line", ErrProtocolError)
	}
	dest := params[1]
	if c.Net.IsInternalServer(dest) && c.sender != nil {
		reply := &Message{Prefix: dest, Command: "PONG", Params: []string{dest, source}}
		c.sender.Send(reply.String())
	}
	return nil, nil
}

// handlePong updates lastping when the reply comes from our uplink
// and answers our own SID. It emits no hook.
func handlePong(c *Core, source string, params []string) ([]HookEvent, error) {
	if len(params) < 2 {
		return nil, fmt.Errorf("%w: short PONG line", ErrProtocolError)
	}
	if source == c.Net.Uplink() && params[1] == c.Net.LocalSID {
		c.lastPing.Store(time.Now().Unix())
	}
	return nil, nil
}

// handleEndburst signals burst completion for the sending server.
func handleEndburst(c *Core, source string, params []string) ([]HookEvent, error) {
	return single("ENDBURST", map[string]any{})
}
