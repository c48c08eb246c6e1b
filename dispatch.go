package spantree

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"
)

// Sender is the minimal outbound capability handlers need: write one
// already-formatted line to the uplink. Link implements this.
type Sender interface {
	Send(line string)
}

// HookEvent is one (command, payload) pair a handler wants delivered
// to the Hook Bus, emitted only after the dispatching critical section
// has closed.
type HookEvent struct {
	Command string
	Payload map[string]any
}

// HandlerFunc is the common signature for every command handler:
// source is the SID/UID prefix of the inbound line (possibly empty),
// params is everything after the verb. It runs under the Network
// Store's write lock; it must not block and must not call the Hook
// Bus directly.
type HandlerFunc func(c *Core, source string, params []string) ([]HookEvent, error)

// Core owns the Network Store, the Mode Vocabulary (via Net.Vocab),
// the Hook Bus, and the verb dispatch table. It is the protocol core's
// single entry point for inbound lines.
type Core struct {
	Net   *Network
	Hooks *HookBus

	sender Sender

	handlers map[string]HandlerFunc

	connected atomic.Bool
	lastPing  atomic.Int64

	sidGen  *SIDGenerator
	uidGens map[string]*UIDGenerator
}

// NewCore builds the dispatch table and wires a Core around net/hooks.
// sender is used by handlers that must reply on the wire (PING, IDLE);
// it may be nil in tests that only exercise state mutation.
func NewCore(net *Network, hooks *HookBus, sender Sender, sidGen *SIDGenerator) *Core {
	c := &Core{
		Net:     net,
		Hooks:   hooks,
		sender:  sender,
		sidGen:  sidGen,
		uidGens: make(map[string]*UIDGenerator),
	}
	c.handlers = map[string]HandlerFunc{
		"FJOIN":    handleFJoin,
		"UID":      handleUID,
		"SERVER":   handleServer,
		"SQUIT":    handleSquit,
		"FMODE":    handleFMode,
		"MODE":     handleMode,
		"FTOPIC":   handleFTopic,
		"SVSTOPIC": handleFTopic,
		"INVITE":   handleInvite,
		"ENCAP":    handleEncap,
		"OPERTYPE": handleOpertype,
		"FIDENT":   handleFIdent,
		"FHOST":    handleFHost,
		"FNAME":    handleFName,
		"IDLE":     handleIdle,
		"PING":     handlePing,
		"PONG":     handlePong,
		"AWAY":     handleAway,
		"ENDBURST": handleEndburst,
	}
	return c
}

// Connected reports whether CAPAB negotiation has completed.
func (c *Core) Connected() bool { return c.connected.Load() }

// SetSender attaches the wire sender a Core emits outbound lines
// through. It exists because NewLink needs a *Core to wrap, so the
// Link/Core pair is wired in two steps: NewCore(..., nil, ...) then
// core.SetSender(link).
func (c *Core) SetSender(s Sender) { c.sender = s }

// UIDGeneratorFor returns (creating if needed) the UID generator
// scoped to sid.
func (c *Core) UIDGeneratorFor(sid string) *UIDGenerator {
	if g, ok := c.uidGens[sid]; ok {
		return g
	}
	g := NewUIDGenerator(sid)
	c.uidGens[sid] = g
	return g
}

// Dispatch parses and routes one inbound line. It returns an error
// only for fatal conditions: AuthFailure, ProtocolTooOld,
// ProtocolError, and InvalidArgument when the pre-registration SERVER
// line names a SID already in the store. Non-fatal handler errors are
// logged and the line is skipped, never propagated.
func (c *Core) Dispatch(line string) error {
	msg, err := ParseMessage(line)
	if err != nil {
		return err
	}

	if !c.Connected() {
		return c.dispatchPreReg(msg)
	}
	return c.dispatchPostReg(msg)
}

func (c *Core) dispatchPreReg(msg *Message) error {
	switch msg.Command {
	case "SERVER":
		c.Net.Lock()
		defer c.Net.Unlock()
		return c.handleServerIntro(msg)
	case "CAPAB":
		c.Net.Lock()
		defer c.Net.Unlock()
		return c.handleCapab(msg)
	default:
		return nil
	}
}

func (c *Core) handleServerIntro(msg *Message) error {
	if len(msg.Params) < 5 {
		return fmt.Errorf("%w: short SERVER line", ErrProtocolError)
	}
	name := strings.ToLower(msg.Params[0])
	pass := msg.Params[1]
	sid := msg.Params[3]
	desc := msg.Params[4]
	if pass != c.Net.RecvPass {
		return fmt.Errorf("%w: from %s", ErrAuthFailure, name)
	}
	_, err := c.Net.AddServer(sid, name, desc, "", false)
	return err
}

func (c *Core) handleCapab(msg *Message) error {
	if len(msg.Params) < 1 {
		return fmt.Errorf("%w: empty CAPAB line", ErrProtocolError)
	}
	sub := msg.Params[0]
	var rest []string
	if len(msg.Params) > 1 {
		rest = strings.Fields(msg.Params[1])
	}
	switch sub {
	case "CHANMODES":
		c.Net.Vocab.IngestChanModeNames(rest)
	case "USERMODES":
		c.Net.Vocab.IngestUserModeNames(rest)
	case "CAPABILITIES":
		if err := c.Net.Vocab.IngestCapabilities(rest); err != nil {
			return err
		}
		c.connected.Store(true)
	default:
		// MODULES, MODSUPPORT, START, END, and any other CAPAB
		// subcommand this module doesn't need: tolerated, ignored.
	}
	return nil
}

func (c *Core) dispatchPostReg(msg *Message) error {
	h, ok := c.handlers[msg.Command]
	if !ok {
		return nil
	}

	c.Net.Lock()
	if u, ok := c.Net.User(msg.Prefix); ok {
		u.LastIdle = time.Now().Unix()
	}
	events, err := h(c, msg.Prefix, msg.Params)
	c.Net.Unlock()

	recordCommand(msg.Command, err)
	if err != nil {
		log.Printf("[dispatch] %s from %s: %v", msg.Command, msg.Prefix, err)
		return nil
	}
	for _, ev := range events {
		c.Hooks.Emit(msg.Prefix, ev.Command, ev.Payload)
	}
	return nil
}

// single wraps the common case of one handler producing one hook
// event under the verb it was dispatched as.
func single(command string, payload map[string]any) ([]HookEvent, error) {
	return []HookEvent{{Command: command, Payload: payload}}, nil
}
