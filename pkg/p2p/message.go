package p2p

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/corwin-hale/minicoin/pkg/types"
)

// Kind identifies one of the three message shapes exchanged between
// peers; every frame on the wire is a single JSON object carrying one
// of these as its "type" field.
type Kind string

const (
	KindLatestBlock Kind = "LATESTBLOCK"
	KindBlockchain  Kind = "BLOCKCHAIN"
	KindTransaction Kind = "TRANSACTION"
)

// envelope is the wire shape: a type tag plus the three possible
// payload fields, at most one of which is populated per Kind.
type envelope struct {
	Type Kind             `json:"type"`
	Block *types.Block    `json:"block,omitempty"`
	Chain []*types.Block  `json:"chain,omitempty"`
	Tx    *types.Transaction `json:"tx,omitempty"`
}

// Message is the decoded form handed to a Node's handler.
type Message struct {
	Kind  Kind
	Block *types.Block
	Chain []*types.Block
	Tx    *types.Transaction
}

// LatestBlockMessage wraps block as a LATESTBLOCK announcement.
func LatestBlockMessage(block *types.Block) Message {
	return Message{Kind: KindLatestBlock, Block: block}
}

// BlockchainMessage wraps chain as a full-chain response.
func BlockchainMessage(chain []*types.Block) Message {
	return Message{Kind: KindBlockchain, Chain: chain}
}

// TransactionMessage wraps tx as a pool candidate announcement.
func TransactionMessage(tx types.Transaction) Message {
	return Message{Kind: KindTransaction, Tx: &tx}
}

// encode renders m as a single JSON line.
func encode(m Message) ([]byte, error) {
	env := envelope{Type: m.Kind, Block: m.Block, Chain: m.Chain, Tx: m.Tx}
	line, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

// readMessage reads one newline-delimited JSON frame from r.
func readMessage(r *bufio.Reader) (Message, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return Message{}, err
	}
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}
	switch env.Type {
	case KindLatestBlock, KindBlockchain, KindTransaction:
	default:
		return Message{}, fmt.Errorf("unknown message type %q", env.Type)
	}
	return Message{Kind: env.Type, Block: env.Block, Chain: env.Chain, Tx: env.Tx}, nil
}
