package spantree

import (
	"fmt"
	"strings"
)

// Message is one inbound or outbound protocol line: an optional SID/UID
// prefix, a verb, and a parameter vector where the final element may be
// a trailing multi-word argument.
type Message struct {
	Prefix  string
	Command string
	Params  []string
}

// ParseMessage tokenizes one inbound line: an
// optional ":source" prefix, a verb, and a parameter vector whose last
// element is the concatenation of a ":"-prefixed token with every token
// after it, joined by a single space. Only the first token beginning
// with ":" starts the trailing argument.
func ParseMessage(line string) (*Message, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, fmt.Errorf("%w: empty line", ErrProtocolError)
	}

	msg := &Message{}

	if line[0] == ':' {
		idx := strings.IndexByte(line, ' ')
		if idx < 0 {
			return nil, fmt.Errorf("%w: prefix with no verb: %q", ErrProtocolError, line)
		}
		msg.Prefix = line[1:idx]
		line = strings.TrimLeft(line[idx+1:], " ")
	}

	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: no verb: %q", ErrProtocolError, line)
	}
	msg.Command = strings.ToUpper(tokens[0])

	rest := tokens[1:]
	trailingAt := -1
	for i, tok := range rest {
		if strings.HasPrefix(tok, ":") {
			trailingAt = i
			break
		}
	}
	if trailingAt == -1 {
		msg.Params = rest
		return msg, nil
	}

	msg.Params = append(msg.Params, rest[:trailingAt]...)
	trailing := strings.TrimPrefix(strings.Join(rest[trailingAt:], " "), ":")
	msg.Params = append(msg.Params, trailing)
	return msg, nil
}

// String serializes the message back to wire form. The last parameter
// is colon-prefixed whenever it is empty or contains a space, so an
// empty trailing argument (a cleared AWAY text, for instance) round-trips.
func (m *Message) String() string {
	var b strings.Builder
	if m.Prefix != "" {
		b.WriteString(":")
		b.WriteString(m.Prefix)
		b.WriteString(" ")
	}
	b.WriteString(m.Command)

	for i, p := range m.Params {
		b.WriteString(" ")
		if i == len(m.Params)-1 && (p == "" || strings.Contains(p, " ") || strings.HasPrefix(p, ":")) {
			b.WriteString(":")
			b.WriteString(p)
		} else {
			b.WriteString(p)
		}
	}
	return b.String()
}
