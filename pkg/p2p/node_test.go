package p2p

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/corwin-hale/minicoin/pkg/mempool"
	"github.com/corwin-hale/minicoin/pkg/mining"
	"github.com/corwin-hale/minicoin/pkg/types"
	"github.com/corwin-hale/minicoin/pkg/validation"
	"github.com/corwin-hale/minicoin/pkg/wallet"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestNode(t *testing.T) *Node {
	t.Helper()
	n := NewNode(validation.NewGenesisState(), mempool.New(), 100, testLogger())
	if err := n.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(n.Stop)
	return n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition never became true")
}

func TestNode_ConnectRegistersPeerOnBothSides(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)

	if err := a.Connect(b.Addr()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	waitFor(t, func() bool { return len(a.Peers()) == 1 && len(b.Peers()) == 1 })
}

func TestNode_SubmitBlockPropagates(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)
	if err := a.Connect(b.Addr()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitFor(t, func() bool { return len(a.Peers()) == 1 })

	w := wallet.New(validation.GenesisKeyPair())

	block := mineBlockForNode(t, a, w)
	if err := a.SubmitBlock(block); err != nil {
		t.Fatalf("SubmitBlock: %v", err)
	}

	waitFor(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.State.Blocks) == 2
	})
}

func mineBlockForNode(t *testing.T, n *Node, w *wallet.Wallet) *types.Block {
	t.Helper()
	for i := 0; i < 50_000; i++ {
		n.mu.Lock()
		block, ok, err := mining.Attempt(n.Pool, n.State, w, int64(i)*1000)
		n.mu.Unlock()
		if err != nil {
			t.Fatalf("Attempt: %v", err)
		}
		if ok {
			return block
		}
	}
	t.Fatalf("failed to mine a block within attempt budget")
	return nil
}
