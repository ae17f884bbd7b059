package bancor

import (
	"errors"
	"fmt"
)

// Error is a program failure with a stable numeric code.
type Error uint32

const (
	ErrSignatureRequired Error = iota
	ErrAlreadyInUse
	ErrInvalidAccountAddress
	ErrInvalidProgramAddress
	ErrInvalidAccountOwnerProgram
	ErrExceededSlippage
	ErrInvalidMint
	ErrInvalidInput
	ErrReserveError
	ErrBalanceTooSmall
	ErrOverflow
	ErrInvalidFee
	ErrInvalidFeeAccount
	ErrInvalidInstruction
	ErrInvalidAccountData
	ErrNotEnoughAccountKeys
	ErrUninitializedAccount
)

var errorNames = [...]string{
	ErrSignatureRequired:          "SignatureRequired",
	ErrAlreadyInUse:               "AlreadyInUse",
	ErrInvalidAccountAddress:      "InvalidAccountAddress",
	ErrInvalidProgramAddress:      "InvalidProgramAddress",
	ErrInvalidAccountOwnerProgram: "InvalidAccountOwnerProgram",
	ErrExceededSlippage:           "ExceededSlippage",
	ErrInvalidMint:                "InvalidMint",
	ErrInvalidInput:               "InvalidInput",
	ErrReserveError:               "ReserveError",
	ErrBalanceTooSmall:            "BalanceTooSmall",
	ErrOverflow:                   "Overflow",
	ErrInvalidFee:                 "InvalidFee",
	ErrInvalidFeeAccount:          "InvalidFeeAccount",
	ErrInvalidInstruction:         "InvalidInstruction",
	ErrInvalidAccountData:         "InvalidAccountData",
	ErrNotEnoughAccountKeys:       "NotEnoughAccountKeys",
	ErrUninitializedAccount:       "UninitializedAccount",
}

var errorMessages = [...]string{
	ErrSignatureRequired:          "signature missing",
	ErrAlreadyInUse:               "account already in use",
	ErrInvalidAccountAddress:      "invalid account address provided",
	ErrInvalidProgramAddress:      "invalid program id",
	ErrInvalidAccountOwnerProgram: "invalid account owner",
	ErrExceededSlippage:           "swap exceeds desired slippage limit",
	ErrInvalidMint:                "invalid mint",
	ErrInvalidInput:               "invalid input",
	ErrReserveError:               "reserve error",
	ErrBalanceTooSmall:            "balance too small",
	ErrOverflow:                   "arithmetic overflow",
	ErrInvalidFee:                 "fee out of range",
	ErrInvalidFeeAccount:          "fee collector must sign",
	ErrInvalidInstruction:         "invalid instruction data",
	ErrInvalidAccountData:         "invalid account data",
	ErrNotEnoughAccountKeys:       "not enough account keys",
	ErrUninitializedAccount:       "account not initialized",
}

func (e Error) Error() string {
	if int(e) < len(errorMessages) {
		return errorMessages[e]
	}
	return fmt.Sprintf("unknown program error %d", uint32(e))
}

// Name returns the variant name, used as a metrics label.
func (e Error) Name() string {
	if int(e) < len(errorNames) {
		return errorNames[e]
	}
	return "Unknown"
}

func (e Error) Code() uint32 {
	return uint32(e)
}

// CustomCode extracts the program error code carried by err, if any.
func CustomCode(err error) (uint32, bool) {
	var e Error
	if errors.As(err, &e) {
		return e.Code(), true
	}
	return 0, false
}
