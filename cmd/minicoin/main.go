// Command minicoin runs a single proof-of-work node: genesis chain
// state, mempool, P2P gossip, an optional miner, and a REPL control
// surface over stdin.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/corwin-hale/minicoin/pkg/config"
	"github.com/corwin-hale/minicoin/pkg/crypto"
	"github.com/corwin-hale/minicoin/pkg/logging"
	"github.com/corwin-hale/minicoin/pkg/mempool"
	"github.com/corwin-hale/minicoin/pkg/mining"
	"github.com/corwin-hale/minicoin/pkg/p2p"
	"github.com/corwin-hale/minicoin/pkg/types"
	"github.com/corwin-hale/minicoin/pkg/validation"
	"github.com/corwin-hale/minicoin/pkg/wallet"
)

// mineInterval is the reference delay between mining attempts while
// mining is active.
const mineInterval = 50 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "optional key=value node config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logging.Configure(cfg.LogLevel)
	log := logging.For("node")

	keys, err := crypto.GenerateKeyPair()
	if err != nil {
		log.Fatal().Err(err).Msg("generate wallet keypair")
	}
	w := wallet.New(keys)

	state := validation.NewGenesisState()
	pool := mempool.New()
	node := p2p.NewNode(state, pool, cfg.MaxPeers, logging.For("p2p"))

	if err := node.Listen(cfg.ListenAddr()); err != nil {
		log.Fatal().Err(err).Msg("start p2p listener")
	}
	for _, addr := range cfg.InitialPeers {
		addr := addr
		go func() {
			if err := node.Connect(addr); err != nil {
				log.Warn().Err(err).Str("addr", addr).Msg("failed to connect to seed peer")
			}
		}()
	}

	m := &miningLoop{node: node, wallet: w, log: logging.For("miner")}
	if cfg.MiningEnabled {
		m.Start()
	}

	log.Info().
		Str("nodeID", cfg.NodeID).
		Str("listen", cfg.ListenAddr()).
		Str("publicKey", string(w.PublicKey())).
		Msg("node started")

	runREPL(node, w, m)

	m.Stop()
	node.Stop()
}

// miningLoop re-schedules mining.Attempt at the reference 50ms cadence
// while active; starting and stopping are idempotent REPL actions.
type miningLoop struct {
	node    *p2p.Node
	wallet  *wallet.Wallet
	log     zerolog.Logger
	running int32
	quit    chan struct{}
	wg      sync.WaitGroup
}

func (m *miningLoop) Start() {
	if !atomic.CompareAndSwapInt32(&m.running, 0, 1) {
		return
	}
	m.quit = make(chan struct{})
	m.wg.Add(1)
	go m.loop()
}

func (m *miningLoop) Stop() {
	if !atomic.CompareAndSwapInt32(&m.running, 1, 0) {
		return
	}
	close(m.quit)
	m.wg.Wait()
}

func (m *miningLoop) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(mineInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.quit:
			return
		case now := <-ticker.C:
			var block *types.Block
			var ok bool
			var err error
			m.node.Locked(func(state *validation.State, pool *mempool.Pool) {
				block, ok, err = mining.Attempt(pool, state, m.wallet, now.UnixMilli())
			})
			if err != nil {
				m.log.Warn().Err(err).Msg("mining attempt failed")
				continue
			}
			if !ok {
				continue
			}
			if err := m.node.SubmitBlock(block); err != nil {
				m.log.Warn().Err(err).Msg("mined block rejected by our own chain")
				continue
			}
			m.log.Info().Str("hash", string(block.Hash)).Msg("mined a block")
		}
	}
}

func runREPL(node *p2p.Node, w *wallet.Wallet, m *miningLoop) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("minicoin node ready. Type .exit to quit.")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, ".") {
			fmt.Println("unknown command, commands start with '.'")
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]

		switch cmd {
		case ".mine":
			m.Start()
			fmt.Println("mining started")
		case ".stop":
			m.Stop()
			fmt.Println("mining stopped")
		case ".add":
			if len(args) < 1 {
				fmt.Println("usage: .add <host:port>")
				continue
			}
			if err := node.Connect(args[0]); err != nil {
				fmt.Printf("connect failed: %v\n", err)
			}
		case ".peers":
			for _, addr := range node.Peers() {
				fmt.Println(addr)
			}
		case ".chain":
			node.Locked(func(state *validation.State, pool *mempool.Pool) {
				printChain(state.Blocks)
			})
		case ".utxos":
			node.Locked(func(state *validation.State, pool *mempool.Pool) {
				printUTXOs(state)
			})
		case ".intervals":
			node.Locked(func(state *validation.State, pool *mempool.Pool) {
				printIntervals(state.Blocks)
			})
		case ".balance":
			var balance int64
			node.Locked(func(state *validation.State, pool *mempool.Pool) {
				balance = w.Balance(state.Utxos)
			})
			fmt.Println(balance)
		case ".key":
			fmt.Println(w.PublicKey())
			if addr, err := crypto.Address(w.PublicKey()); err == nil {
				fmt.Println("address:", addr)
			}
		case ".send":
			if len(args) < 2 {
				fmt.Println("usage: .send <amount> <publicKey>")
				continue
			}
			amount, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				fmt.Printf("invalid amount: %v\n", err)
				continue
			}
			var tx types.Transaction
			var buildErr error
			node.Locked(func(state *validation.State, pool *mempool.Pool) {
				tx, buildErr = w.MakeTx(amount, types.PublicKey(args[1]), state.Utxos)
			})
			if buildErr != nil {
				fmt.Printf("could not build transaction: %v\n", buildErr)
				continue
			}
			if !node.SubmitTx(tx) {
				fmt.Println("transaction rejected by our own pool")
				continue
			}
			fmt.Println(tx.Hash)
		case ".pool":
			node.Locked(func(state *validation.State, pool *mempool.Pool) {
				for _, tx := range pool.Txs() {
					fmt.Println(tx.Hash)
				}
			})
		case ".clear":
			node.Locked(func(state *validation.State, pool *mempool.Pool) {
				pool.Clear()
			})
			fmt.Println("pool cleared")
		case ".exit":
			return
		default:
			fmt.Printf("unknown command: %s\n", cmd)
		}
	}
}

func printChain(blocks []*types.Block) {
	for i, b := range blocks {
		fmt.Printf("%d %s time=%d nonce=%d txs=%d\n", i, b.Hash, b.Time, b.Nonce, len(b.Txs))
	}
}

func printUTXOs(state *validation.State) {
	for _, e := range state.Utxos.All() {
		fmt.Printf("%s:%d %s %d\n", e.Hash, e.Index, e.PublicKey, e.Amount)
	}
}

func printIntervals(blocks []*types.Block) {
	for i := 1; i < len(blocks); i++ {
		fmt.Printf("%d -> %d: %ds\n", i-1, i, blocks[i].Time-blocks[i-1].Time)
	}
}
