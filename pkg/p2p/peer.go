package p2p

import (
	"bufio"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Peer wraps one persistent bidirectional TCP connection. A goroutine
// pair drains and fills it; callers interact only through Send and the
// Receive channel.
type Peer struct {
	conn    net.Conn
	addr    string
	Inbound bool

	ConnectedAt time.Time

	Send    chan Message
	Receive chan Message
	Quit    chan struct{}

	log zerolog.Logger
	wg  sync.WaitGroup
}

// NewPeer wraps an already-established connection.
func NewPeer(conn net.Conn, inbound bool, log zerolog.Logger) *Peer {
	return &Peer{
		conn:        conn,
		addr:        conn.RemoteAddr().String(),
		Inbound:     inbound,
		ConnectedAt: time.Now(),
		Send:        make(chan Message, 100),
		Receive:     make(chan Message, 100),
		Quit:        make(chan struct{}),
		log:         log.With().Str("peer", conn.RemoteAddr().String()).Logger(),
	}
}

// Address returns the remote address this peer connected from or to.
func (p *Peer) Address() string {
	return p.addr
}

// Start launches the read and write loops.
func (p *Peer) Start() {
	p.wg.Add(2)
	go p.readLoop()
	go p.writeLoop()
}

// Stop closes the connection and waits for both loops to exit.
func (p *Peer) Stop() {
	p.closeQuit()
	p.conn.Close()
	p.wg.Wait()
}

// closeQuit closes p.Quit exactly once, however the shutdown was
// triggered — an explicit Stop, or readLoop/writeLoop noticing the
// socket itself errored or closed out from under them.
func (p *Peer) closeQuit() {
	select {
	case <-p.Quit:
	default:
		close(p.Quit)
	}
}

// SendMessage queues msg for delivery; it is dropped silently if the
// peer is already shutting down.
func (p *Peer) SendMessage(msg Message) {
	select {
	case p.Send <- msg:
	case <-p.Quit:
	}
}

func (p *Peer) readLoop() {
	defer p.wg.Done()
	reader := bufio.NewReader(p.conn)

	for {
		select {
		case <-p.Quit:
			return
		default:
		}

		p.conn.SetReadDeadline(time.Now().Add(20 * time.Minute))
		msg, err := readMessage(reader)
		if err != nil {
			if err != io.EOF {
				p.log.Debug().Err(err).Msg("peer read failed, closing link")
			}
			p.closeQuit()
			return
		}

		select {
		case p.Receive <- msg:
		case <-p.Quit:
			return
		}
	}
}

func (p *Peer) writeLoop() {
	defer p.wg.Done()

	for {
		select {
		case msg := <-p.Send:
			p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			line, err := encode(msg)
			if err != nil {
				p.log.Warn().Err(err).Msg("failed to encode outgoing message")
				continue
			}
			if _, err := p.conn.Write(line); err != nil {
				p.log.Debug().Err(err).Msg("peer write failed, closing link")
				p.closeQuit()
				return
			}
		case <-p.Quit:
			return
		}
	}
}
