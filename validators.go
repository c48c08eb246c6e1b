package spantree

import "strings"

// ircSpecials are the non-alphanumeric characters IRC allows in a nick
// beyond letters: the IRC "letter + special" character class.
const ircSpecials = `_\^|[]{}` + "`"

// isNickStart reports whether c may be the first character of a nick:
// a letter or one of the IRC specials (no digits, no '-').
func isNickStart(c byte) bool {
	if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
		return true
	}
	return strings.IndexByte(ircSpecials, c) >= 0
}

// isNickChar reports whether c may appear after the first character
// of a nick: everything isNickStart allows, plus digits and '-'.
func isNickChar(c byte) bool {
	if isNickStart(c) {
		return true
	}
	return c >= '0' && c <= '9' || c == '-'
}

// IsNick validates a nickname against the IRC "letter + special"
// syntax and a maximum length. A nicklen of 0 means unbounded.
func IsNick(nick string, nicklen int) bool {
	if nick == "" {
		return false
	}
	if nicklen > 0 && len(nick) > nicklen {
		return false
	}
	if !isNickStart(nick[0]) {
		return false
	}
	for i := 1; i < len(nick); i++ {
		if !isNickChar(nick[i]) {
			return false
		}
	}
	return true
}

// IsChannel validates a channel name: non-empty and starting with '#'.
func IsChannel(name string) bool {
	return len(name) > 0 && name[0] == '#'
}

// IsServerName validates a server name: non-empty, containing at
// least one '.', not starting with '.', and containing no whitespace.
// A trailing '.' is tolerated (e.g. "services."); only a leading one
// is rejected.
func IsServerName(name string) bool {
	if name == "" {
		return false
	}
	if !strings.Contains(name, ".") {
		return false
	}
	if name[0] == '.' {
		return false
	}
	return !strings.ContainsAny(name, " \t\r\n")
}
