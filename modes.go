package spantree

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// ModeChange is one parsed mode toggle: a sign, a mode letter, and an
// optional argument. HasArg distinguishes "no argument" from "empty
// argument" for modes whose argument may legitimately be "".
type ModeChange struct {
	Add    bool
	Letter byte
	Arg    string
	HasArg bool
}

func (c ModeChange) signed() string {
	if c.Add {
		return "+" + string(c.Letter)
	}
	return "-" + string(c.Letter)
}

// modeClass identifies which of the four CHANMODES/USERMODES argument
// classes a letter belongs to, or whether it is a prefix (membership
// status) mode, which behaves like a fifth class that always consumes
// an argument regardless of sign.
type modeClass byte

const (
	classNone modeClass = iota
	classA
	classB
	classC
	classD
	classPrefix
)

// ModeVocabulary is the live, capability-negotiated mapping from
// symbolic mode names to mode letters, the A/B/C/D argument classes,
// and the prefix-mode table. It becomes stable only after CAPAB END;
// callers must not read it before the link reports connected.
// It has no lock of its own: it is one of the three resources (with
// the Network Store and the identifier generators) the Core serializes
// access to under one lock.
type ModeVocabulary struct {
	chanNames map[string]byte
	userNames map[string]byte

	chanClass map[byte]modeClass
	userClass map[byte]modeClass

	prefixSymbol map[byte]byte // mode letter -> status symbol
	prefixOrder  []byte        // letters in the order PREFIX advertised them

	protocol   int
	maxNickLen int
	maxChanLen int
}

// NewModeVocabulary returns an empty vocabulary, ready to be populated
// by IngestChanModeNames/IngestUserModeNames/IngestCapabilities during
// pre-registration.
func NewModeVocabulary() *ModeVocabulary {
	return &ModeVocabulary{
		chanNames:    make(map[string]byte),
		userNames:    make(map[string]byte),
		chanClass:    make(map[byte]modeClass),
		userClass:    make(map[byte]modeClass),
		prefixSymbol: make(map[byte]byte),
	}
}

// IngestChanModeNames applies a CAPAB CHANMODES line's name=char tokens
// to the channel symbolic-name table, renaming reginvite->regonly and
// founder->owner for cross-protocol neutrality. Only the final
// character of the value is
// kept; InspIRCd prefixes it with the mode's status symbol when the
// mode implies one (e.g. "op=@o").
func (v *ModeVocabulary) IngestChanModeNames(tokens []string) {
	for _, tok := range tokens {
		name, char, ok := strings.Cut(strings.TrimPrefix(tok, ":"), "=")
		if !ok || char == "" {
			continue
		}
		switch name {
		case "reginvite":
			name = "regonly"
		case "founder":
			name = "owner"
		}
		v.chanNames[name] = char[len(char)-1]
	}
}

// IngestUserModeNames applies a CAPAB USERMODES line's name=char tokens
// to the user symbolic-name table.
func (v *ModeVocabulary) IngestUserModeNames(tokens []string) {
	for _, tok := range tokens {
		name, char, ok := strings.Cut(strings.TrimPrefix(tok, ":"), "=")
		if !ok || char == "" {
			continue
		}
		v.userNames[name] = char[len(char)-1]
	}
}

// IngestCapabilities applies a CAPAB CAPABILITIES line's KEY=VALUE
// tokens: it validates PROTOCOL, records NICKMAX/CHANMAX, splits
// CHANMODES/USERMODES into the four argument classes, and parses
// PREFIX=(letters)symbols into the prefix-mode table.
func (v *ModeVocabulary) IngestCapabilities(tokens []string) error {
	caps := make(map[string]string, len(tokens))
	for _, tok := range tokens {
		k, val, ok := strings.Cut(strings.TrimPrefix(tok, ":"), "=")
		if ok {
			caps[k] = val
		}
	}

	protoStr, ok := caps["PROTOCOL"]
	if !ok {
		return fmt.Errorf("%w: CAPABILITIES missing PROTOCOL", ErrProtocolError)
	}
	proto, err := strconv.Atoi(protoStr)
	if err != nil {
		return fmt.Errorf("%w: malformed PROTOCOL=%q", ErrProtocolError, protoStr)
	}
	if proto < 1202 {
		return fmt.Errorf("%w: got %d, need >= 1202", ErrProtocolTooOld, proto)
	}

	v.protocol = proto
	if s, ok := caps["NICKMAX"]; ok {
		if n, err := strconv.Atoi(s); err == nil {
			v.maxNickLen = n
		}
	}
	if s, ok := caps["CHANMAX"]; ok {
		if n, err := strconv.Atoi(s); err == nil {
			v.maxChanLen = n
		}
	}
	if s, ok := caps["CHANMODES"]; ok {
		if err := assignClasses(v.chanClass, s); err != nil {
			return err
		}
	}
	if s, ok := caps["USERMODES"]; ok {
		if err := assignClasses(v.userClass, s); err != nil {
			return err
		}
	}
	if s, ok := caps["PREFIX"]; ok {
		letters, symbols, err := parsePrefix(s)
		if err != nil {
			return err
		}
		v.prefixOrder = nil
		for i := range letters {
			v.prefixSymbol[letters[i]] = symbols[i]
			v.prefixOrder = append(v.prefixOrder, letters[i])
		}
	}
	return nil
}

// assignClasses splits a "A,B,C,D" CHANMODES/USERMODES value into its
// four letter groups and records each letter's class.
func assignClasses(dst map[byte]modeClass, spec string) error {
	groups := strings.Split(spec, ",")
	if len(groups) != 4 {
		return fmt.Errorf("%w: mode class spec %q does not have 4 groups", ErrProtocolError, spec)
	}
	classes := [4]modeClass{classA, classB, classC, classD}
	for i, group := range groups {
		for j := 0; j < len(group); j++ {
			dst[group[j]] = classes[i]
		}
	}
	return nil
}

// parsePrefix parses "(letters)symbols" into parallel slices.
func parsePrefix(spec string) (letters, symbols []byte, err error) {
	open := strings.IndexByte(spec, '(')
	shut := strings.IndexByte(spec, ')')
	if open != 0 || shut < open {
		return nil, nil, fmt.Errorf("%w: malformed PREFIX=%q", ErrProtocolError, spec)
	}
	letters = []byte(spec[open+1 : shut])
	symbols = []byte(spec[shut+1:])
	if len(letters) != len(symbols) {
		return nil, nil, fmt.Errorf("%w: PREFIX letter/symbol length mismatch in %q", ErrProtocolError, spec)
	}
	return letters, symbols, nil
}

// snapshotChanClasses returns a copy of the channel mode-class table,
// for callers (TS reconciliation) that iterate it while mutating a
// channel's mode set.
func (v *ModeVocabulary) snapshotChanClasses() map[byte]modeClass {
	cp := make(map[byte]modeClass, len(v.chanClass))
	for k, val := range v.chanClass {
		cp[k] = val
	}
	return cp
}

func (v *ModeVocabulary) classify(letter byte, isChannel bool) modeClass {
	if !isChannel {
		return v.userClass[letter]
	}
	if _, ok := v.prefixSymbol[letter]; ok {
		return classPrefix
	}
	return v.chanClass[letter]
}

// PrefixSymbol returns the status symbol (e.g. '@') for a prefix mode
// letter, if known.
func (v *ModeVocabulary) PrefixSymbol(letter byte) (byte, bool) {
	s, ok := v.prefixSymbol[letter]
	return s, ok
}

// ChanLetter returns the mode letter for a symbolic channel mode name
// (post-rename, e.g. "regonly", "owner").
func (v *ModeVocabulary) ChanLetter(name string) (byte, bool) {
	l, ok := v.chanNames[name]
	return l, ok
}

// UserLetter returns the mode letter for a symbolic user mode name.
func (v *ModeVocabulary) UserLetter(name string) (byte, bool) {
	l, ok := v.userNames[name]
	return l, ok
}

// MaxNickLen returns the peer-advertised nickname length limit, or 0
// if CAPABILITIES has not been ingested yet.
func (v *ModeVocabulary) MaxNickLen() int {
	return v.maxNickLen
}

// ParseModes parses a mode string and its trailing argument vector
// against the vocabulary into an ordered list of ModeChanges: class A
// and B letters always consume an argument; class C
// consumes only when being set; class D never consumes; prefix-mode
// letters consume on both signs. Unknown letters are skipped without
// consuming an argument.
func (v *ModeVocabulary) ParseModes(isChannel bool, fields []string) []ModeChange {
	if len(fields) == 0 {
		return nil
	}

	modeStr := fields[0]
	argQueue := fields[1:]
	argi := 0
	nextArg := func() (string, bool) {
		if argi < len(argQueue) {
			a := argQueue[argi]
			argi++
			return a, true
		}
		return "", false
	}

	var changes []ModeChange
	add := true
	for i := 0; i < len(modeStr); i++ {
		switch modeStr[i] {
		case '+':
			add = true
			continue
		case '-':
			add = false
			continue
		}
		letter := modeStr[i]
		switch v.classify(letter, isChannel) {
		case classPrefix, classA, classB:
			if arg, ok := nextArg(); ok {
				changes = append(changes, ModeChange{Add: add, Letter: letter, Arg: arg, HasArg: true})
			} else {
				log.Printf("[modes] mode %q missing required argument", letter)
			}
		case classC:
			if add {
				if arg, ok := nextArg(); ok {
					changes = append(changes, ModeChange{Add: add, Letter: letter, Arg: arg, HasArg: true})
				} else {
					log.Printf("[modes] mode %q missing required argument", letter)
				}
			} else {
				changes = append(changes, ModeChange{Add: add, Letter: letter})
			}
		case classD:
			changes = append(changes, ModeChange{Add: add, Letter: letter})
		default:
			log.Printf("[modes] skipping unknown mode letter %q", letter)
		}
	}
	return changes
}

// JoinModes is the inverse of ParseModes: it groups changes by sign,
// concatenates their letters, and appends arguments in encounter
// order. The empty set renders as "+"; no trailing space is emitted
// when no change carries an argument.
func JoinModes(changes []ModeChange) string {
	var plus, minus strings.Builder
	var args []string
	for _, c := range changes {
		if c.Add {
			plus.WriteByte(c.Letter)
		} else {
			minus.WriteByte(c.Letter)
		}
		if c.HasArg {
			args = append(args, c.Arg)
		}
	}

	var sb strings.Builder
	if plus.Len() > 0 {
		sb.WriteByte('+')
		sb.WriteString(plus.String())
	}
	if minus.Len() > 0 {
		sb.WriteByte('-')
		sb.WriteString(minus.String())
	}
	if sb.Len() == 0 {
		sb.WriteByte('+')
	}
	for _, a := range args {
		sb.WriteByte(' ')
		sb.WriteString(a)
	}
	return sb.String()
}

// ApplyChannelModes mutates ch's mode set and per-member prefix set:
// "+" adds, "-" removes; class A modes are list-valued
// (multiple (letter, arg) entries survive at once); non-list
// parameterised modes replace any prior value; prefix modes toggle
// membership in ch.PrefixModes[uid].
func ApplyChannelModes(ch *Channel, vocab *ModeVocabulary, changes []ModeChange) {
	for _, c := range changes {
		switch vocab.classify(c.Letter, true) {
		case classPrefix:
			uid := c.Arg
			set, ok := ch.PrefixModes[uid]
			if !ok {
				set = make(map[byte]struct{})
				ch.PrefixModes[uid] = set
			}
			if c.Add {
				set[c.Letter] = struct{}{}
			} else {
				delete(set, c.Letter)
			}
		case classA:
			if c.Add {
				ch.Modes[c.Letter] = appendUnique(ch.Modes[c.Letter], c.Arg)
			} else if vals, ok := ch.Modes[c.Letter]; ok {
				vals = removeValue(vals, c.Arg)
				if len(vals) == 0 {
					delete(ch.Modes, c.Letter)
				} else {
					ch.Modes[c.Letter] = vals
				}
			}
		default: // B, C, D
			if c.Add {
				ch.Modes[c.Letter] = []string{c.Arg}
			} else {
				delete(ch.Modes, c.Letter)
			}
		}
	}
}

// ApplyUserModes mutates u's mode set. User modes have no list class
// and no prefix concept; "+" sets, "-" clears.
func ApplyUserModes(u *User, changes []ModeChange) {
	for _, c := range changes {
		if c.Add {
			u.Modes[c.Letter] = []string{c.Arg}
		} else {
			delete(u.Modes, c.Letter)
		}
	}
}

// HasUserMode reports whether letter is set on u.
func HasUserMode(u *User, letter byte) bool {
	_, ok := u.Modes[letter]
	return ok
}

func appendUnique(vals []string, v string) []string {
	for _, existing := range vals {
		if existing == v {
			return vals
		}
	}
	return append(vals, v)
}

func removeValue(vals []string, v string) []string {
	out := vals[:0]
	for _, existing := range vals {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}
