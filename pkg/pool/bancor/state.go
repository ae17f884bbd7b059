package bancor

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// PoolState is the record persisted in the pool account.
type PoolState struct {
	IsInitialized bool
	BumpSeed      uint8
	BumpSeedSol   uint8
	Fee           uint16
	FeeCollector  solana.PublicKey
}

// Decode parses a pool record. The data must be exactly PoolSize bytes.
func (s *PoolState) Decode(data []byte) error {
	if len(data) != PoolSize {
		return ErrInvalidAccountData
	}
	dec := bin.NewBinDecoder(data)

	flag, err := dec.ReadUint8()
	if err != nil {
		return ErrInvalidAccountData
	}
	switch flag {
	case 0:
		s.IsInitialized = false
	case 1:
		s.IsInitialized = true
	default:
		return ErrInvalidAccountData
	}

	if s.BumpSeed, err = dec.ReadUint8(); err != nil {
		return ErrInvalidAccountData
	}
	if s.BumpSeedSol, err = dec.ReadUint8(); err != nil {
		return ErrInvalidAccountData
	}
	if s.Fee, err = dec.ReadUint16(binary.LittleEndian); err != nil {
		return ErrInvalidAccountData
	}
	key, err := dec.ReadNBytes(32)
	if err != nil {
		return ErrInvalidAccountData
	}
	s.FeeCollector = solana.PublicKeyFromBytes(key)
	return nil
}

// Encode serializes the record into its PoolSize-byte layout.
func (s *PoolState) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	if err := enc.WriteBool(s.IsInitialized); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(s.BumpSeed); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(s.BumpSeedSol); err != nil {
		return nil, err
	}
	if err := enc.WriteUint16(s.Fee, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(s.FeeCollector[:], false); err != nil {
		return nil, err
	}
	if buf.Len() != PoolSize {
		return nil, fmt.Errorf("encoded pool record is %d bytes", buf.Len())
	}
	return buf.Bytes(), nil
}

func (s *PoolState) Span() uint64 {
	return PoolSize
}

// Offset returns field offset - Used for RPC query filters
func (s *PoolState) Offset(field string) uint64 {
	switch field {
	case "Fee":
		return 3
	case "FeeCollector":
		return 5
	}
	return 0
}

// LoadPoolState decodes a pool record and requires it to be initialized.
func LoadPoolState(data []byte) (*PoolState, error) {
	var s PoolState
	if err := s.Decode(data); err != nil {
		return nil, err
	}
	if !s.IsInitialized {
		return nil, ErrUninitializedAccount
	}
	return &s, nil
}
