package ledger

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/Solana-ZH/bondswap/pkg/sol"
)

// Account is the stored state of one address.
type Account struct {
	Lamports uint64
	Owner    solana.PublicKey
	Data     []byte
}

func (a *Account) Clone() *Account {
	c := *a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return &c
}

// empty is the state of an address the ledger has never seen.
func empty() *Account {
	return &Account{Owner: solana.SystemProgramID}
}

func encodeAccount(a *Account) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	if err := enc.WriteUint64(a.Lamports, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(a.Owner[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint32(uint32(len(a.Data)), binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(a.Data, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeAccount(data []byte) (*Account, error) {
	dec := bin.NewBinDecoder(data)
	lamports, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read lamports: %w", err)
	}
	owner, err := dec.ReadNBytes(32)
	if err != nil {
		return nil, fmt.Errorf("read owner: %w", err)
	}
	size, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read data length: %w", err)
	}
	payload, err := dec.ReadNBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	return &Account{
		Lamports: lamports,
		Owner:    solana.PublicKeyFromBytes(owner),
		Data:     append([]byte(nil), payload...),
	}, nil
}

// NewSystemAccount returns a plain lamport account.
func NewSystemAccount(lamports uint64) *Account {
	return &Account{Lamports: lamports, Owner: solana.SystemProgramID}
}

// NewTokenAccount returns a rent-exempt, initialized token account.
func NewTokenAccount(mint, owner solana.PublicKey, amount uint64) *Account {
	holding := sol.TokenAccount{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  sol.AccountStateInitialized,
	}
	return &Account{
		Lamports: sol.MinimumBalance(sol.TokenAccountSize),
		Owner:    solana.TokenProgramID,
		Data:     holding.Encode(),
	}
}
