package sol

import (
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintLayout(t *testing.T) {
	authority := solana.NewWallet().PublicKey()
	m := Mint{
		MintAuthority: &authority,
		Supply:        1_234_567,
		Decimals:      9,
		IsInitialized: true,
	}
	data := m.Encode()
	require.Len(t, data, int(MintSize))
	assert.Equal(t, authority[:], data[m.Offset("MintAuthority"):m.Offset("MintAuthority")+32])

	var got Mint
	require.NoError(t, got.Decode(data))
	require.NotNil(t, got.MintAuthority)
	assert.True(t, got.MintAuthority.Equals(authority))
	assert.Nil(t, got.FreezeAuthority)
	assert.Equal(t, uint64(1_234_567), got.Supply)
	assert.Equal(t, uint8(9), got.Decimals)
	assert.True(t, got.IsInitialized)

	var lib token.Mint
	require.NoError(t, bin.NewBinDecoder(data).Decode(&lib))
	assert.Equal(t, token.Mint(m), lib)

	data[45] = 7
	assert.Error(t, got.Decode(data))
	assert.Error(t, got.Decode(data[:81]))
}

func TestTokenAccountLayout(t *testing.T) {
	a := TokenAccount{
		Mint:   solana.NewWallet().PublicKey(),
		Owner:  solana.NewWallet().PublicKey(),
		Amount: 42,
		State:  AccountStateInitialized,
	}
	data := a.Encode()
	require.Len(t, data, int(TokenAccountSize))

	var got TokenAccount
	require.NoError(t, got.Decode(data))
	assert.Equal(t, a, got)

	var lib token.Account
	require.NoError(t, bin.NewBinDecoder(data).Decode(&lib))
	assert.Equal(t, token.Account(a), lib)

	data[108] = 3
	assert.Error(t, got.Decode(data))
	assert.Error(t, got.Decode(data[:100]))
}

func TestMinimumBalance(t *testing.T) {
	assert.Equal(t, uint64(890_880), MinimumBalance(0))
	assert.Equal(t, uint64(2_039_280), MinimumBalance(TokenAccountSize))
	assert.True(t, RentExempt(0, 10))
	assert.False(t, RentExempt(1, 0))
	assert.True(t, RentExempt(890_880, 0))
}
