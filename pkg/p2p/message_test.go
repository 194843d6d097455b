package p2p

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/corwin-hale/minicoin/pkg/validation"
)

func TestEncodeDecode_LatestBlock(t *testing.T) {
	state := validation.NewGenesisState()
	msg := LatestBlockMessage(state.Tip())

	line, err := encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := readMessage(bufio.NewReader(bytes.NewReader(line)))
	if err != nil {
		t.Fatalf("readMessage: %v", err)
	}
	if decoded.Kind != KindLatestBlock {
		t.Fatalf("Kind = %v, want LATESTBLOCK", decoded.Kind)
	}
	if decoded.Block == nil || decoded.Block.Hash != state.Tip().Hash {
		t.Fatalf("decoded block does not match original tip")
	}
}

func TestReadMessage_RejectsUnknownType(t *testing.T) {
	_, err := readMessage(bufio.NewReader(bytes.NewReader([]byte(`{"type":"NONSENSE"}` + "\n"))))
	if err == nil {
		t.Fatalf("expected rejection of an unknown message type")
	}
}

func TestReadMessage_RejectsMalformedJSON(t *testing.T) {
	_, err := readMessage(bufio.NewReader(bytes.NewReader([]byte(`{not json` + "\n"))))
	if err == nil {
		t.Fatalf("expected rejection of malformed JSON")
	}
}
