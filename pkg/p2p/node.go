// Package p2p implements the node-to-node gossip layer: one persistent
// TCP connection per peer, JSON-framed LATESTBLOCK / BLOCKCHAIN /
// TRANSACTION messages, and the handler table that feeds accepted
// blocks and transactions into the chain and pool.
package p2p

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/corwin-hale/minicoin/pkg/mempool"
	"github.com/corwin-hale/minicoin/pkg/types"
	"github.com/corwin-hale/minicoin/pkg/validation"
)

// Node owns the chain, the pool, and the set of live peer links. Chain
// and pool mutation is serialized under mu, matching the single
// "one event at a time" ordering the reference implementation gets
// for free from its event loop; peer I/O itself runs concurrently.
type Node struct {
	State *validation.State
	Pool  *mempool.Pool

	maxInboundPeers int
	inboundCount    int
	limiter         *rate.Limiter

	mu    sync.Mutex
	peers map[string]*Peer

	log zerolog.Logger

	listener net.Listener
	quit     chan struct{}
	wg       sync.WaitGroup
}

// NewNode wires a gossip node around an already-initialized chain state
// and mempool. maxInboundPeers caps simultaneous inbound links; the
// reference value is 100.
func NewNode(state *validation.State, pool *mempool.Pool, maxInboundPeers int, log zerolog.Logger) *Node {
	return &Node{
		State:           state,
		Pool:            pool,
		maxInboundPeers: maxInboundPeers,
		limiter:         rate.NewLimiter(rate.Limit(20), 40),
		peers:           make(map[string]*Peer),
		log:             log,
		quit:            make(chan struct{}),
	}
}

// Listen opens the inbound TCP socket and starts accepting connections.
func (n *Node) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	n.listener = listener
	n.wg.Add(1)
	go n.acceptLoop(listener)
	n.log.Info().Str("addr", addr).Msg("p2p listener started")
	return nil
}

// Addr returns the listener's bound address; only valid after Listen.
func (n *Node) Addr() string {
	return n.listener.Addr().String()
}

// Locked runs fn with the chain state and pool held under the same
// lock the gossip handlers use to serialize AddBlock / SwapChains /
// pool mutation. Any caller outside this package that reads or writes
// State or Pool — the miner's snapshot, the REPL's introspection
// commands — must go through this rather than touching the fields
// directly, or it races the handler goroutines.
func (n *Node) Locked(fn func(state *validation.State, pool *mempool.Pool)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fn(n.State, n.Pool)
}

// Stop closes the listener and every peer link.
func (n *Node) Stop() {
	close(n.quit)
	if n.listener != nil {
		n.listener.Close()
	}

	n.mu.Lock()
	peers := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}
	n.mu.Unlock()

	for _, p := range peers {
		p.Stop()
	}
	n.wg.Wait()
}

// Connect dials addr, registers the resulting peer, and announces our
// current tip as required on outbound connection open.
func (n *Node) Connect(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	p := n.register(conn, false)
	if p == nil {
		conn.Close()
		return fmt.Errorf("peer cap reached, refused outbound registration")
	}
	p.SendMessage(LatestBlockMessage(n.tip()))
	return nil
}

// Peers lists the addresses of every currently connected peer.
func (n *Node) Peers() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.peers))
	for addr := range n.peers {
		out = append(out, addr)
	}
	return out
}

func (n *Node) acceptLoop(listener net.Listener) {
	defer n.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-n.quit:
				return
			default:
				n.log.Debug().Err(err).Msg("accept failed")
				continue
			}
		}

		if !n.limiter.Allow() {
			conn.Close()
			continue
		}

		if n.register(conn, true) == nil {
			// Past the inbound cap: accept then immediately decline,
			// per the reference's backpressure behavior.
			conn.Close()
		}
	}
}

// register admits conn as a tracked peer, enforcing the inbound cap.
// It returns nil without registering when an inbound connection would
// exceed maxInboundPeers.
func (n *Node) register(conn net.Conn, inbound bool) *Peer {
	n.mu.Lock()
	if inbound && n.inboundCount >= n.maxInboundPeers {
		n.mu.Unlock()
		return nil
	}
	p := NewPeer(conn, inbound, n.log)
	n.peers[p.Address()] = p
	if inbound {
		n.inboundCount++
	}
	n.mu.Unlock()

	p.Start()
	n.log.Info().Str("peer", p.Address()).Bool("inbound", inbound).Msg("peer connected")

	n.wg.Add(1)
	go n.serve(p)
	return p
}

func (n *Node) serve(p *Peer) {
	defer n.wg.Done()
	for {
		select {
		case msg := <-p.Receive:
			if err := n.dispatch(p, msg); err != nil {
				n.log.Warn().Err(err).Str("peer", p.Address()).Msg("message handler failed")
			}
		case <-p.Quit:
			n.unregister(p)
			return
		case <-n.quit:
			return
		}
	}
}

func (n *Node) unregister(p *Peer) {
	n.mu.Lock()
	if _, ok := n.peers[p.Address()]; ok {
		delete(n.peers, p.Address())
		if p.Inbound {
			n.inboundCount--
		}
	}
	n.mu.Unlock()
	n.log.Info().Str("peer", p.Address()).Msg("peer disconnected")
}

// dispatch applies the handler table from the gossip spec: LATESTBLOCK
// tries to extend the chain, BLOCKCHAIN tries a fork swap, TRANSACTION
// offers a pool candidate. Any failure here is reported to the caller
// but never tears down the link.
func (n *Node) dispatch(p *Peer, msg Message) error {
	switch msg.Kind {
	case KindLatestBlock:
		return n.handleLatestBlock(p, msg.Block)
	case KindBlockchain:
		return n.handleBlockchain(p, msg.Chain)
	case KindTransaction:
		return n.handleTransaction(p, msg.Tx)
	default:
		return fmt.Errorf("unhandled message kind %q", msg.Kind)
	}
}

func (n *Node) handleLatestBlock(p *Peer, block *types.Block) error {
	if block == nil {
		return fmt.Errorf("LATESTBLOCK with no block payload")
	}

	n.mu.Lock()
	err := validation.AddBlock(block, n.State, time.Now().Unix())
	if err == nil {
		n.Pool.RemoveBlockTxs(block)
	}
	tip := n.tipLocked()
	n.mu.Unlock()

	if err != nil {
		n.sendChain(p)
		return nil
	}
	n.broadcastExcept(LatestBlockMessage(tip), p.Address())
	return nil
}

func (n *Node) handleBlockchain(p *Peer, chain []*types.Block) error {
	if len(chain) == 0 {
		return fmt.Errorf("BLOCKCHAIN with empty chain")
	}

	n.mu.Lock()
	delta, err := validation.SwapChains(n.State, chain, time.Now().Unix())
	if err != nil {
		n.mu.Unlock()
		return nil
	}
	sign := delta.Sign()
	var tip *types.Block
	if sign > 0 {
		n.Pool.Clear()
		tip = n.tipLocked()
	}
	n.mu.Unlock()

	switch {
	case sign > 0:
		n.broadcastExcept(LatestBlockMessage(tip), p.Address())
	case sign < 0:
		n.sendChain(p)
	}
	return nil
}

func (n *Node) handleTransaction(p *Peer, tx *types.Transaction) error {
	if tx == nil {
		return fmt.Errorf("TRANSACTION with no tx payload")
	}

	n.mu.Lock()
	accepted := n.Pool.AddTx(*tx, n.State.Utxos)
	n.mu.Unlock()

	if accepted {
		n.broadcastExcept(TransactionMessage(*tx), p.Address())
	}
	return nil
}

// SubmitBlock is called after a local mining success: it applies the
// block to chain state exactly like a peer LATESTBLOCK, then announces
// the new tip to every peer.
func (n *Node) SubmitBlock(block *types.Block) error {
	n.mu.Lock()
	if err := validation.AddBlock(block, n.State, time.Now().Unix()); err != nil {
		n.mu.Unlock()
		return err
	}
	n.Pool.RemoveBlockTxs(block)
	tip := n.tipLocked()
	n.mu.Unlock()

	n.broadcastExcept(LatestBlockMessage(tip), "")
	return nil
}

// SubmitTx offers a locally built transaction to our own pool and, if
// accepted, gossips it onward.
func (n *Node) SubmitTx(tx types.Transaction) bool {
	n.mu.Lock()
	accepted := n.Pool.AddTx(tx, n.State.Utxos)
	n.mu.Unlock()

	if accepted {
		n.broadcastExcept(TransactionMessage(tx), "")
	}
	return accepted
}

func (n *Node) sendChain(p *Peer) {
	n.mu.Lock()
	chain := append([]*types.Block(nil), n.State.Blocks...)
	n.mu.Unlock()
	p.SendMessage(BlockchainMessage(chain))
}

func (n *Node) broadcastExcept(msg Message, exceptAddr string) {
	n.mu.Lock()
	targets := make([]*Peer, 0, len(n.peers))
	for addr, p := range n.peers {
		if addr == exceptAddr {
			continue
		}
		targets = append(targets, p)
	}
	n.mu.Unlock()

	for _, p := range targets {
		p.SendMessage(msg)
	}
}

func (n *Node) tip() *types.Block {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tipLocked()
}

func (n *Node) tipLocked() *types.Block {
	return n.State.Blocks[len(n.State.Blocks)-1]
}
