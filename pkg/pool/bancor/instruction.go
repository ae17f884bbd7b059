package bancor

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// InstructionType is the leading tag byte of an instruction.
type InstructionType uint8

const (
	InstructionInitialize InstructionType = iota
	InstructionBuy
	InstructionSell
	InstructionChangeFee
)

func (t InstructionType) String() string {
	switch t {
	case InstructionInitialize:
		return "initialize"
	case InstructionBuy:
		return "buy"
	case InstructionSell:
		return "sell"
	case InstructionChangeFee:
		return "change_fee"
	}
	return fmt.Sprintf("instruction(%d)", uint8(t))
}

// SwapAmount is the payload of Buy and Sell.
type SwapAmount struct {
	AmountIn         uint64
	MinimumAmountOut uint64
}

// Instruction is a decoded program instruction. Amount is set for Buy and
// Sell, Fee for ChangeFee.
type Instruction struct {
	Type   InstructionType
	Amount SwapAmount
	Fee    uint16
}

// DecodeInstruction parses instruction data. Bytes after the payload are
// ignored.
func DecodeInstruction(data []byte) (*Instruction, error) {
	if len(data) == 0 {
		return nil, ErrInvalidInstruction
	}
	dec := bin.NewBinDecoder(data)
	tag, err := dec.ReadUint8()
	if err != nil {
		return nil, ErrInvalidInstruction
	}

	inst := &Instruction{Type: InstructionType(tag)}
	switch inst.Type {
	case InstructionInitialize:
	case InstructionBuy, InstructionSell:
		if inst.Amount.AmountIn, err = dec.ReadUint64(binary.LittleEndian); err != nil {
			return nil, ErrInvalidInstruction
		}
		if inst.Amount.MinimumAmountOut, err = dec.ReadUint64(binary.LittleEndian); err != nil {
			return nil, ErrInvalidInstruction
		}
	case InstructionChangeFee:
		if inst.Fee, err = dec.ReadUint16(binary.LittleEndian); err != nil {
			return nil, ErrInvalidInstruction
		}
	default:
		return nil, ErrInvalidInstruction
	}
	return inst, nil
}

// Encode serializes the instruction in its wire format.
func (i *Instruction) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint8(uint8(i.Type)); err != nil {
		return nil, err
	}
	switch i.Type {
	case InstructionInitialize:
	case InstructionBuy, InstructionSell:
		if err := enc.WriteUint64(i.Amount.AmountIn, binary.LittleEndian); err != nil {
			return nil, err
		}
		if err := enc.WriteUint64(i.Amount.MinimumAmountOut, binary.LittleEndian); err != nil {
			return nil, err
		}
	case InstructionChangeFee:
		if err := enc.WriteUint16(i.Fee, binary.LittleEndian); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown instruction type %d", uint8(i.Type))
	}
	return buf.Bytes(), nil
}

// InitializeAccounts are the caller-chosen accounts of Initialize. The pool
// and vault addresses are derived from the mint.
type InitializeAccounts struct {
	Payer        solana.PublicKey
	Mint         solana.PublicKey
	FeeCollector solana.PublicKey
}

// NewInitializeInstruction builds an Initialize instruction. Both the payer
// and the new mint must sign the transaction.
func NewInitializeInstruction(programID solana.PublicKey, accounts InitializeAccounts) (solana.Instruction, error) {
	pool, _, err := DerivePoolAddress(programID, accounts.Mint)
	if err != nil {
		return nil, err
	}
	vault, _, err := DeriveVaultAddress(programID, pool)
	if err != nil {
		return nil, err
	}
	data, err := (&Instruction{Type: InstructionInitialize}).Encode()
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(accounts.Payer).WRITE().SIGNER(),
		solana.Meta(accounts.Mint).WRITE().SIGNER(),
		solana.Meta(pool).WRITE(),
		solana.Meta(vault).WRITE(),
		solana.Meta(accounts.FeeCollector),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SysVarRentPubkey),
	}
	return solana.NewInstruction(programID, metas, data), nil
}

// SwapAccounts identify the market and the trader of a Buy or Sell. The
// trader's token account, the pool and the vault are derived.
type SwapAccounts struct {
	User                 solana.PublicKey
	Mint                 solana.PublicKey
	FeeCollector         solana.PublicKey
	ProviderFeeCollector solana.PublicKey
}

// NewBuyInstruction builds a Buy paying amountIn lamports for at least
// minOut tokens.
func NewBuyInstruction(programID solana.PublicKey, accounts SwapAccounts, amountIn, minOut uint64) (solana.Instruction, error) {
	base, err := swapMetas(programID, accounts)
	if err != nil {
		return nil, err
	}
	data, err := (&Instruction{
		Type:   InstructionBuy,
		Amount: SwapAmount{AmountIn: amountIn, MinimumAmountOut: minOut},
	}).Encode()
	if err != nil {
		return nil, err
	}
	metas := append(base,
		solana.Meta(accounts.FeeCollector).WRITE(),
		solana.Meta(accounts.ProviderFeeCollector).WRITE(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
	)
	return solana.NewInstruction(programID, metas, data), nil
}

// NewSellInstruction builds a Sell of amountIn tokens for at least minOut
// lamports.
func NewSellInstruction(programID solana.PublicKey, accounts SwapAccounts, amountIn, minOut uint64) (solana.Instruction, error) {
	base, err := swapMetas(programID, accounts)
	if err != nil {
		return nil, err
	}
	data, err := (&Instruction{
		Type:   InstructionSell,
		Amount: SwapAmount{AmountIn: amountIn, MinimumAmountOut: minOut},
	}).Encode()
	if err != nil {
		return nil, err
	}
	metas := append(base,
		solana.Meta(accounts.ProviderFeeCollector).WRITE(),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
	)
	return solana.NewInstruction(programID, metas, data), nil
}

func swapMetas(programID solana.PublicKey, accounts SwapAccounts) (solana.AccountMetaSlice, error) {
	pool, _, err := DerivePoolAddress(programID, accounts.Mint)
	if err != nil {
		return nil, err
	}
	vault, _, err := DeriveVaultAddress(programID, pool)
	if err != nil {
		return nil, err
	}
	userToken, _, err := solana.FindAssociatedTokenAddress(accounts.User, accounts.Mint)
	if err != nil {
		return nil, err
	}
	return solana.AccountMetaSlice{
		solana.Meta(accounts.User).WRITE().SIGNER(),
		solana.Meta(userToken).WRITE(),
		solana.Meta(pool),
		solana.Meta(vault).WRITE(),
		solana.Meta(accounts.Mint).WRITE(),
	}, nil
}

// ChangeFeeAccounts are the accounts of a ChangeFee.
type ChangeFeeAccounts struct {
	FeeCollector    solana.PublicKey
	NewFeeCollector solana.PublicKey
	Mint            solana.PublicKey
}

// NewChangeFeeInstruction builds a ChangeFee signed by the current fee
// collector.
func NewChangeFeeInstruction(programID solana.PublicKey, accounts ChangeFeeAccounts, fee uint16) (solana.Instruction, error) {
	pool, _, err := DerivePoolAddress(programID, accounts.Mint)
	if err != nil {
		return nil, err
	}
	data, err := (&Instruction{Type: InstructionChangeFee, Fee: fee}).Encode()
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(accounts.FeeCollector).WRITE().SIGNER(),
		solana.Meta(accounts.NewFeeCollector).WRITE(),
		solana.Meta(pool).WRITE(),
		solana.Meta(accounts.Mint),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(programID, metas, data), nil
}
