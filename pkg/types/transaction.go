package types

import "encoding/json"

// Output pays an amount to a public key. Amounts below 2 are dust and are
// rejected by validation, never constructed by this type itself.
type Output struct {
	PublicKey PublicKey `json:"publicKey"`
	Amount    int64     `json:"amount"`
}

// Input references a prior Output by the transaction that created it and
// carries the signature proving the right to spend it.
type Input struct {
	Hash      Hash      `json:"hash"`
	Index     int       `json:"index"`
	Signature Signature `json:"signature"`
}

// unsignedInput is an Input stripped of its signature, used to build the
// payload a transaction hash is computed over.
type unsignedInput struct {
	Hash  Hash `json:"hash"`
	Index int  `json:"index"`
}

// Transaction moves value from a set of prior outputs to one or two new
// ones. Hash is SHA-256 over the canonical serialization of the
// transaction with Hash and every input's Signature omitted.
type Transaction struct {
	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`
	Hash    Hash     `json:"hash"`
}

// txHashPayload is the JSON shape hashed to produce a Transaction's Hash:
// inputs without signatures, outputs in declared order, no hash field.
type txHashPayload struct {
	Inputs  []unsignedInput `json:"inputs"`
	Outputs []Output        `json:"outputs"`
}

// HashPayload returns the canonical bytes that, hashed, yield tx.Hash.
func (tx *Transaction) HashPayload() ([]byte, error) {
	payload := txHashPayload{
		Inputs:  make([]unsignedInput, len(tx.Inputs)),
		Outputs: tx.Outputs,
	}
	for i, in := range tx.Inputs {
		payload.Inputs[i] = unsignedInput{Hash: in.Hash, Index: in.Index}
	}
	return json.Marshal(payload)
}

// Coinbase is the mandatory final transaction of a block: it mints the
// block reward and collects the per-input fees of the block's other
// transactions into a single output.
type Coinbase struct {
	Outputs []Output `json:"outputs"`
	Hash    Hash     `json:"hash"`
}

// coinbaseHashPayload is the JSON shape hashed (after prefixing with the
// block time) to produce a Coinbase's Hash.
type coinbaseHashPayload struct {
	Outputs []Output `json:"outputs"`
}

// HashPayload returns the canonical bytes hashed (with the block time
// prefix applied by the caller) to produce cb.Hash.
func (cb *Coinbase) HashPayload() ([]byte, error) {
	return json.Marshal(coinbaseHashPayload{Outputs: cb.Outputs})
}
