package sol

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go/programs/token"
)

// Token account states.
const (
	AccountStateUninitialized = token.Uninitialized
	AccountStateInitialized   = token.Initialized
	AccountStateFrozen        = token.Frozen
)

const (
	mintInitializedOffset = 45
	accountStateOffset    = 108
)

// Mint is the SPL token mint record.
type Mint token.Mint

// Decode parses the 82-byte mint layout.
func (m *Mint) Decode(data []byte) error {
	if uint64(len(data)) != MintSize {
		return fmt.Errorf("mint data length %d, want %d", len(data), MintSize)
	}
	// the library reads any non-zero byte as true
	if flag := data[mintInitializedOffset]; flag > 1 {
		return fmt.Errorf("invalid mint initialized flag %d", flag)
	}
	var decoded token.Mint
	if err := bin.NewBinDecoder(data).Decode(&decoded); err != nil {
		return fmt.Errorf("decode mint: %w", err)
	}
	*m = Mint(decoded)
	return nil
}

func (m *Mint) Encode() []byte {
	buf := new(bytes.Buffer)
	_ = token.Mint(*m).MarshalWithEncoder(bin.NewBinEncoder(buf))
	return buf.Bytes()
}

func (m *Mint) Span() uint64 {
	return MintSize
}

// Offset returns field offset - Used for RPC query filters
func (m *Mint) Offset(field string) uint64 {
	switch field {
	case "MintAuthority":
		// skip the 4-byte option tag
		return 4
	case "Supply":
		return 36
	case "Decimals":
		return 44
	}
	return 0
}

// TokenAccount is the SPL token account record.
type TokenAccount token.Account

// Decode parses the 165-byte token account layout.
func (a *TokenAccount) Decode(data []byte) error {
	if uint64(len(data)) != TokenAccountSize {
		return fmt.Errorf("token account data length %d, want %d", len(data), TokenAccountSize)
	}
	if state := token.AccountState(data[accountStateOffset]); state > AccountStateFrozen {
		return fmt.Errorf("invalid token account state %d", state)
	}
	var decoded token.Account
	if err := bin.NewBinDecoder(data).Decode(&decoded); err != nil {
		return fmt.Errorf("decode token account: %w", err)
	}
	*a = TokenAccount(decoded)
	return nil
}

func (a *TokenAccount) Encode() []byte {
	buf := new(bytes.Buffer)
	_ = token.Account(*a).MarshalWithEncoder(bin.NewBinEncoder(buf))
	return buf.Bytes()
}

func (a *TokenAccount) Span() uint64 {
	return TokenAccountSize
}
