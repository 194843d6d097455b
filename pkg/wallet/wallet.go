// Package wallet builds and signs spending transactions from a single
// owned keypair.
package wallet

import (
	"fmt"

	"github.com/corwin-hale/minicoin/pkg/crypto"
	"github.com/corwin-hale/minicoin/pkg/types"
	"github.com/corwin-hale/minicoin/pkg/utxo"
)

// InsufficientFundsError reports that the wallet's owned UTXOs cannot
// cover the requested amount plus fees.
type InsufficientFundsError struct {
	Wanted    int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %d (including fees), best accumulation reached %d", e.Wanted, e.Available)
}

// Wallet holds one secp256k1 keypair for its process lifetime.
type Wallet struct {
	keys *crypto.KeyPair
}

// New wraps an existing keypair as a wallet.
func New(keys *crypto.KeyPair) *Wallet {
	return &Wallet{keys: keys}
}

// PublicKey returns the wallet's compressed hex public key.
func (w *Wallet) PublicKey() types.PublicKey {
	return w.keys.PublicKey()
}

// Balance sums every UTXO in utxos owned by this wallet.
func (w *Wallet) Balance(utxos *utxo.Set) int64 {
	var total int64
	for _, e := range utxos.ByPublicKey(w.PublicKey()) {
		total += e.Amount
	}
	return total
}

// MakeTx builds and signs a transaction sending amountSent to recipient,
// drawing only from UTXOs utxos attributes to this wallet's public key.
func (w *Wallet) MakeTx(amountSent int64, recipient types.PublicKey, utxos *utxo.Set) (types.Transaction, error) {
	if amountSent <= 2 {
		return types.Transaction{}, fmt.Errorf("amount %d must exceed 2", amountSent)
	}

	owned := utxos.ByPublicKey(w.PublicKey())

	var chosen []utxo.Entry
	var accumulated int64
	for _, e := range owned {
		chosen = append(chosen, e)
		accumulated += e.Amount
		if accumulated >= amountSent+1+int64(len(chosen)) {
			break
		}
	}
	if accumulated < amountSent+1+int64(len(chosen)) {
		return types.Transaction{}, &InsufficientFundsError{
			Wanted:    amountSent + 1 + int64(len(chosen)),
			Available: accumulated,
		}
	}

	outputs := []types.Output{{PublicKey: recipient, Amount: amountSent}}
	change := accumulated - amountSent - 1 - int64(len(chosen))
	if change > 1 {
		outputs = append(outputs, types.Output{PublicKey: w.PublicKey(), Amount: change})
	}

	inputs := make([]types.Input, len(chosen))
	for i, e := range chosen {
		inputs[i] = types.Input{Hash: e.Hash, Index: e.Index}
	}

	payload, err := (&types.Transaction{Inputs: inputs, Outputs: outputs}).HashPayload()
	if err != nil {
		return types.Transaction{}, fmt.Errorf("serialize transaction: %w", err)
	}
	hash := crypto.Sum256(payload)

	for i := range inputs {
		sig, err := w.keys.Sign(hash)
		if err != nil {
			return types.Transaction{}, fmt.Errorf("sign input %d: %w", i, err)
		}
		inputs[i].Signature = sig
	}

	return types.Transaction{Inputs: inputs, Outputs: outputs, Hash: hash}, nil
}
