package spantree

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"net/textproto"
	"sync"
	"time"
)

// Link owns the single TCP connection to our uplink: it drives the
// CAPAB/SERVER handshake on connect, feeds inbound lines to a Core,
// and answers for the Sender interface handlers and outbound
// operations use to write to the wire.
type Link struct {
	Core *Core

	addr         string
	pingInterval time.Duration
	pongTimeout  time.Duration
	tlsConfig    *tls.Config

	conn      net.Conn
	writer    *bufio.Writer
	writeLock sync.Mutex

	done chan struct{}
}

// NewLink creates a Link that will dial addr once Run is called.
func NewLink(core *Core, addr string, pingInterval, pongTimeout time.Duration) *Link {
	return &Link{
		Core:         core,
		addr:         addr,
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		done:         make(chan struct{}),
	}
}

// SetTLSConfig arms the link to dial the uplink over TLS instead of
// plain TCP. Call it before Run; a nil tlsConfig (the default) keeps
// the link on plain TCP, matching InspIRCd links that don't require
// encryption on a trusted private network.
func (l *Link) SetTLSConfig(tlsConfig *tls.Config) {
	l.tlsConfig = tlsConfig
}

// Send writes one already-formatted line to the uplink, appending the
// wire terminator. It implements Sender.
func (l *Link) Send(line string) {
	l.writeLock.Lock()
	defer l.writeLock.Unlock()
	if l.writer == nil {
		return
	}
	if _, err := l.writer.WriteString(line + "\r\n"); err != nil {
		log.Printf("[link] write error: %v", err)
		return
	}
	if err := l.writer.Flush(); err != nil {
		log.Printf("[link] flush error: %v", err)
	}
}

// Run dials the uplink, performs the handshake, and blocks reading
// lines until the connection closes or ctx-equivalent teardown
// happens via Close. It is meant to be run on its own goroutine.
func (l *Link) Run() error {
	var conn net.Conn
	var err error
	if l.tlsConfig != nil {
		conn, err = tls.Dial("tcp", l.addr, l.tlsConfig)
	} else {
		conn, err = net.Dial("tcp", l.addr)
	}
	if err != nil {
		return fmt.Errorf("spantree: dial %s: %w", l.addr, err)
	}
	l.conn = conn
	l.writer = bufio.NewWriter(conn)
	defer conn.Close()

	l.handshake()

	go l.pingLoop()
	defer close(l.done)

	reader := textproto.NewReader(bufio.NewReader(conn))
	conn.SetReadDeadline(time.Now().Add(l.pongTimeout))

	for {
		line, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				log.Printf("[link] uplink closed the connection")
			} else {
				log.Printf("[link] read error: %v", err)
			}
			return err
		}
		if line == "" {
			continue
		}
		conn.SetReadDeadline(time.Now().Add(l.pongTimeout))
		if err := l.Core.Dispatch(line); err != nil {
			log.Printf("[link] fatal protocol error, closing: %v", err)
			return err
		}
	}
}

// handshake emits the exact pre-registration sequence an InspIRCd
// link expects: CAPAB START/CAPABILITIES/END, our SERVER
// line, BURST, and ENDBURST.
func (l *Link) handshake() {
	l.Core.Net.RLock()
	sid := l.Core.Net.LocalSID
	hostname := l.Core.Net.Hostname
	sendpass := l.Core.Net.SendPass
	serverdesc := l.Core.Net.ServerDesc
	l.Core.Net.RUnlock()

	startTS := time.Now().Unix()
	l.Send("CAPAB START 1202")
	l.Send("CAPAB CAPABILITIES :PROTOCOL=1202")
	l.Send("CAPAB END")
	l.Send(fmt.Sprintf("SERVER %s %s 0 %s :%s", hostname, sendpass, sid, serverdesc))
	l.Send(fmt.Sprintf(":%s BURST %d", sid, startTS))
	l.Send(fmt.Sprintf(":%s ENDBURST", sid))
}

// pingLoop periodically pings the uplink to detect a dead connection;
// the read-deadline reset in Run is what actually enforces the
// pongTimeout.
func (l *Link) pingLoop() {
	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.Core.PingServer("", "")
		}
	}
}

// Close tears down the connection, unblocking Run's read loop.
func (l *Link) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}
