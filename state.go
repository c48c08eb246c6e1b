package spantree

import (
	"fmt"
	"strings"
	"sync"
)

// Fold case-folds s per RFC 1459: {|}^ are the lowercase forms of
// [\]~. All channel names and nicknames are compared and keyed in
// folded form.
func Fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			b.WriteByte('{')
		case ']':
			b.WriteByte('}')
		case '\\':
			b.WriteByte('|')
		case '~':
			b.WriteByte('^')
		default:
			b.WriteByte(s[i] | asciiLowerMask(s[i]))
		}
	}
	return b.String()
}

// asciiLowerMask returns the bit needed to fold an ASCII uppercase
// letter to lowercase, or 0 for any other byte.
func asciiLowerMask(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return 0x20
	}
	return 0
}

// Server is one node of the spanning tree: either the local
// pseudo-server, a directly-linked uplink, or a server reached
// transitively through it.
type Server struct {
	SID         string
	Name        string
	Description string
	UplinkSID   string // "" for the network root
	IsInternal  bool
	Users       map[string]struct{} // uid set
}

// User is one network user, local or remote.
type User struct {
	UID           string
	Nick          string
	TS            int64
	Ident         string
	Host          string
	RealHost      string
	IP            string
	RealName      string
	Modes         map[byte][]string // letter -> values; presence means set
	Channels      map[string]struct{}
	OperType      string
	Away          string
	AwaySet       bool
	LastIdle      int64
	Manipulatable bool
}

// Channel is one network channel, keyed by its folded name.
type Channel struct {
	Name        string // as first received (when the channel was created), unfolded
	TS          int64
	Topic       string
	TopicSet    bool
	Modes       map[byte][]string
	Users       map[string]struct{}          // uid set
	PrefixModes map[string]map[byte]struct{} // uid -> prefix letters held there
}

// Clone returns a value-copy of ch suitable for a hook payload:
// plugins must never receive a live reference into the
// store. Caller must hold at least RLock.
func (ch *Channel) Clone() Channel {
	cp := Channel{Name: ch.Name, TS: ch.TS, Topic: ch.Topic, TopicSet: ch.TopicSet}
	cp.Modes = make(map[byte][]string, len(ch.Modes))
	for k, v := range ch.Modes {
		vs := make([]string, len(v))
		copy(vs, v)
		cp.Modes[k] = vs
	}
	cp.Users = make(map[string]struct{}, len(ch.Users))
	for u := range ch.Users {
		cp.Users[u] = struct{}{}
	}
	cp.PrefixModes = make(map[string]map[byte]struct{}, len(ch.PrefixModes))
	for u, set := range ch.PrefixModes {
		cs := make(map[byte]struct{}, len(set))
		for l := range set {
			cs[l] = struct{}{}
		}
		cp.PrefixModes[u] = cs
	}
	return cp
}

func newChannel(name string, ts int64) *Channel {
	return &Channel{
		Name:        name,
		TS:          ts,
		Modes:       make(map[byte][]string),
		Users:       make(map[string]struct{}),
		PrefixModes: make(map[string]map[byte]struct{}),
	}
}

// Network is the authoritative replica of the spanning tree's servers,
// users, and channels. It is the single owner of every Server/User/
// Channel record; callers borrow records under RLock
// and must copy out anything handed to a hook payload.
type Network struct {
	mu sync.RWMutex

	LocalSID   string
	Hostname   string
	SendPass   string
	RecvPass   string
	ServerDesc string

	uplinkSID string // "" until the SERVER line from our uplink arrives

	servers  map[string]*Server  // sid -> server
	users    map[string]*User    // uid -> user
	channels map[string]*Channel // folded name -> channel

	Vocab *ModeVocabulary
}

// NewNetwork constructs an empty store for the local pseudo-server
// identified by localSID, seeding itself as an internal server record.
func NewNetwork(localSID, hostname, sendpass, recvpass, serverdesc string) *Network {
	n := &Network{
		LocalSID:   localSID,
		Hostname:   hostname,
		SendPass:   sendpass,
		RecvPass:   recvpass,
		ServerDesc: serverdesc,
		servers:    make(map[string]*Server),
		users:      make(map[string]*User),
		channels:   make(map[string]*Channel),
		Vocab:      NewModeVocabulary(),
	}
	n.servers[localSID] = &Server{
		SID:         localSID,
		Name:        hostname,
		Description: serverdesc,
		IsInternal:  true,
		Users:       make(map[string]struct{}),
	}
	return n
}

// Uplink returns the SID of the network root (the server with no
// uplink_sid), or "" if the link hasn't introduced one yet. Caller
// must hold at least RLock.
func (n *Network) Uplink() string {
	return n.uplinkSID
}

// AddServer records a new server in the tree. uplinkSID may be "" only
// for the network root, and only once. Caller must hold Lock.
func (n *Network) AddServer(sid, name, desc, uplinkSID string, isInternal bool) (*Server, error) {
	if _, exists := n.servers[sid]; exists {
		return nil, fmt.Errorf("%w: SID %q already in use", ErrInvalidArgument, sid)
	}
	s := &Server{
		SID:         sid,
		Name:        name,
		Description: desc,
		UplinkSID:   uplinkSID,
		IsInternal:  isInternal,
		Users:       make(map[string]struct{}),
	}
	n.servers[sid] = s
	if uplinkSID == "" {
		n.uplinkSID = sid
	}
	return s, nil
}

// Server returns the server record for sid. Caller must hold at least RLock.
func (n *Network) Server(sid string) (*Server, bool) {
	s, ok := n.servers[sid]
	return s, ok
}

// IsInternalServer reports whether sid names a server we originate
// (the local pseudo-server, or one spawned via spawnServer). Caller
// must hold at least RLock.
func (n *Network) IsInternalServer(sid string) bool {
	s, ok := n.servers[sid]
	return ok && s.IsInternal
}

// IsInternalClient reports whether uid belongs to an internal server.
// Caller must hold at least RLock.
func (n *Network) IsInternalClient(uid string) bool {
	if _, ok := n.users[uid]; !ok || len(uid) < 3 {
		return false
	}
	s, ok := n.servers[uid[:3]]
	return ok && s.IsInternal
}

// RemoveServerCascade destroys the named server along with every
// server whose uplink chain passes through it, and every user on any
// of those servers. It returns the removed server SIDs and users, for
// hook payload construction. Caller must hold Lock.
func (n *Network) RemoveServerCascade(sid string) (removedServers []string, removedUsers []User) {
	doomed := map[string]struct{}{sid: {}}
	for added := true; added; {
		added = false
		for s, srv := range n.servers {
			if _, already := doomed[s]; already {
				continue
			}
			if _, ok := doomed[srv.UplinkSID]; ok && srv.UplinkSID != "" {
				doomed[s] = struct{}{}
				added = true
			}
		}
	}

	for uid, u := range n.users {
		if len(uid) < 3 {
			continue
		}
		if _, ok := doomed[uid[:3]]; ok {
			removedUsers = append(removedUsers, *u)
			n.removeUserLocked(uid)
		}
	}
	for s := range doomed {
		delete(n.servers, s)
		removedServers = append(removedServers, s)
	}
	return removedServers, removedUsers
}

// AddUser records a new user under its owning server (the first 3
// characters of uid). Caller must hold Lock.
func (n *Network) AddUser(u *User) error {
	if len(u.UID) != 9 {
		return fmt.Errorf("%w: UID %q must be 9 characters", ErrInvalidArgument, u.UID)
	}
	srv, ok := n.servers[u.UID[:3]]
	if !ok {
		return fmt.Errorf("%w: server %q for UID %q not known", ErrUnknownTarget, u.UID[:3], u.UID)
	}
	if u.Modes == nil {
		u.Modes = make(map[byte][]string)
	}
	if u.Channels == nil {
		u.Channels = make(map[string]struct{})
	}
	n.users[u.UID] = u
	srv.Users[u.UID] = struct{}{}
	return nil
}

// User returns the user record for uid. Caller must hold at least RLock.
func (n *Network) User(uid string) (*User, bool) {
	u, ok := n.users[uid]
	return u, ok
}

// UserByNick looks up a user by case-folded nick. Caller must hold at
// least RLock.
func (n *Network) UserByNick(nick string) (*User, bool) {
	folded := Fold(nick)
	for _, u := range n.users {
		if Fold(u.Nick) == folded {
			return u, true
		}
	}
	return nil, false
}

// RemoveUser destroys a user record, detaching it from its server and
// every channel it was a member of. Caller must hold Lock.
func (n *Network) RemoveUser(uid string) {
	n.removeUserLocked(uid)
}

// removeUserLocked assumes the caller already holds Lock (the name
// predates the store's single-lock refactor; it is no longer special
// relative to its sibling methods).
func (n *Network) removeUserLocked(uid string) {
	u, ok := n.users[uid]
	if !ok {
		return
	}
	if len(uid) >= 3 {
		if srv, ok := n.servers[uid[:3]]; ok {
			delete(srv.Users, uid)
		}
	}
	for chName := range u.Channels {
		if ch, ok := n.channels[chName]; ok {
			delete(ch.Users, uid)
			delete(ch.PrefixModes, uid)
		}
	}
	delete(n.users, uid)
}

// Channel returns the channel named name, creating it with the given
// ts if it doesn't yet exist (channels are implicit on first
// reference). Caller must hold Lock.
func (n *Network) Channel(name string, ts int64) *Channel {
	key := Fold(name)
	ch, ok := n.channels[key]
	if !ok {
		ch = newChannel(name, ts)
		n.channels[key] = ch
	}
	return ch
}

// LookupChannel returns the channel named name without creating it.
// Caller must hold at least RLock.
func (n *Network) LookupChannel(name string) (*Channel, bool) {
	ch, ok := n.channels[Fold(name)]
	return ch, ok
}

// Lock/RLock/Unlock/RUnlock expose the store's single lock so handlers
// and outbound operations can treat a whole operation as one atomic
// critical section, including mutations that touch more than one
// of AddUser/Channel/etc.
func (n *Network) Lock()    { n.mu.Lock() }
func (n *Network) Unlock()  { n.mu.Unlock() }
func (n *Network) RLock()   { n.mu.RLock() }
func (n *Network) RUnlock() { n.mu.RUnlock() }

// Counts returns the current population sizes, for periodic metrics
// publication. It takes RLock itself; callers must not already hold
// the store lock.
func (n *Network) Counts() (users, servers, channels int) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.users), len(n.servers), len(n.channels)
}

// JoinUserToChannel adds uid to ch's membership and records the
// reverse link on the user. Caller must hold the store lock.
func (n *Network) JoinUserToChannel(u *User, ch *Channel) {
	ch.Users[u.UID] = struct{}{}
	if ch.PrefixModes[u.UID] == nil {
		ch.PrefixModes[u.UID] = make(map[byte]struct{})
	}
	u.Channels[Fold(ch.Name)] = struct{}{}
}

// ReconcileChannelTS applies the TS-based reconciliation rule and
// returns how the caller should treat incoming per-member prefix
// modes and non-list channel modes from the same event.
//
//   - theirTS < our TS: we lost. ch.TS drops to theirTS, our non-list
//     modes and all per-member prefixes are cleared; the caller should
//     apply the incoming modes/prefixes unconditionally.
//   - theirTS == our TS: tie. ch.TS is unchanged; the caller should
//     merge (apply) incoming modes/prefixes alongside ours.
//   - theirTS > our TS: we won. ch.TS is unchanged; the caller must
//     still add membership but must discard incoming prefix modes, and
//     must not apply incoming non-list modes.
func (n *Network) ReconcileChannelTS(ch *Channel, theirTS int64) TSOutcome {
	switch {
	case theirTS < ch.TS:
		ch.TS = theirTS
		for letter, class := range n.Vocab.snapshotChanClasses() {
			if class != classA {
				delete(ch.Modes, letter)
			}
		}
		for uid := range ch.PrefixModes {
			ch.PrefixModes[uid] = make(map[byte]struct{})
		}
		return TSLost
	case theirTS == ch.TS:
		return TSTie
	default:
		return TSWon
	}
}

// TSOutcome is the result of ReconcileChannelTS.
type TSOutcome int

const (
	TSLost TSOutcome = iota
	TSTie
	TSWon
)
