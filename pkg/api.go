package pkg

import (
	"context"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ProtocolName represents the string name of AMM protocol
type ProtocolName string

const (
	ProtocolNameBancor ProtocolName = "bancor_curve"
)

// ProtocolType represents the numeric type of AMM protocol
type ProtocolType uint8

const (
	ProtocolTypeBancor ProtocolType = iota
)

type Pool interface {
	ProtocolName() ProtocolName
	ProtocolType() ProtocolType
	GetProgramID() solana.PublicKey
	GetID() string
	GetTokens() (baseMint, quoteMint string)
	Quote(ctx context.Context, solClient *rpc.Client, inputMint string, inputAmount math.Int) (math.Int, error)
	BuildSwapInstructions(
		ctx context.Context,
		solClient *rpc.Client,
		user solana.PublicKey,
		inputMint string,
		inputAmount math.Int,
		minOut math.Int,
	) ([]solana.Instruction, error)
}

type Protocol interface {
	FetchPoolsByPair(ctx context.Context, baseMint, quoteMint string) ([]Pool, error)
	FetchPoolByID(ctx context.Context, poolID string) (Pool, error)
}

// AccountInfo is the snapshot of one account handed to a program, in the
// order the instruction lists it.
type AccountInfo struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool
	Lamports   uint64
	Owner      solana.PublicKey
	Data       []byte
}

// Authority lets a program sign for an address it derives from seeds.
type Authority struct {
	Seeds [][]byte
	Bump  uint8
}

// Address re-derives the signing address with the stored bump.
func (a Authority) Address(programID solana.PublicKey) (solana.PublicKey, error) {
	seeds := make([][]byte, 0, len(a.Seeds)+1)
	seeds = append(seeds, a.Seeds...)
	seeds = append(seeds, []byte{a.Bump})
	return solana.CreateProgramAddress(seeds, programID)
}

// Invocation is an instruction a program asks the host to run on its behalf.
type Invocation struct {
	Instruction solana.Instruction
	Authority   *Authority
}

// AccountWrite replaces the data of an account owned by the invoking program.
type AccountWrite struct {
	Account solana.PublicKey
	Data    []byte
}

// Batch is the full set of effects produced by one successful instruction.
// The host applies invocations in order, then writes, and commits all of it
// or none of it.
type Batch struct {
	Invocations []Invocation
	Writes      []AccountWrite

	committed []func()
}

func (b *Batch) Invoke(inst solana.Instruction) {
	b.Invocations = append(b.Invocations, Invocation{Instruction: inst})
}

func (b *Batch) InvokeSigned(inst solana.Instruction, authority Authority) {
	b.Invocations = append(b.Invocations, Invocation{Instruction: inst, Authority: &authority})
}

func (b *Batch) Write(account solana.PublicKey, data []byte) {
	b.Writes = append(b.Writes, AccountWrite{Account: account, Data: data})
}

// OnCommit registers fn to run once the host has committed the batch. It never
// runs for a batch that is rolled back.
func (b *Batch) OnCommit(fn func()) {
	b.committed = append(b.committed, fn)
}

// Committed runs the OnCommit callbacks in registration order.
func (b *Batch) Committed() {
	for _, fn := range b.committed {
		fn()
	}
}

// Runtime exposes the host parameters a program may consult.
type Runtime interface {
	MinimumBalance(dataLen uint64) uint64
}

// Program is an on-ledger program the host can dispatch instructions to.
type Program interface {
	ProgramID() solana.PublicKey
	Process(ctx context.Context, rt Runtime, accounts []*AccountInfo, data []byte) (*Batch, error)
}
