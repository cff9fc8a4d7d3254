// Package errs holds the engine's error taxonomy. Every error carries a stable
// machine code that ends up in the service envelope.
package errs

import (
	"context"
	"errors"
	"fmt"
)

const (
	CodeChainRead             = "CHAIN_READ_ERROR"
	CodeInvalidAddress        = "INVALID_ADDRESS"
	CodeInvalidInput          = "INVALID_INPUT"
	CodePoolMigrated          = "POOL_MIGRATED"
	CodeNoClaimableFees       = "NO_CLAIMABLE_FEES"
	CodeTransactionFailed     = "TRANSACTION_FAILED"
	CodeMissingReferencePrice = "MISSING_REFERENCE_PRICE"
	CodeInsufficientBalance   = "INSUFFICIENT_BALANCE"
	CodeMissingSigner         = "MISSING_SIGNER"
	CodeInternal              = "INTERNAL_ERROR"
)

// ErrPoolNotFound is wrapped in a ChainReadError when a pool account does not exist.
var ErrPoolNotFound = errors.New("pool not found")

// ChainReadError is an RPC or decode failure while reading chain state.
type ChainReadError struct {
	Address string
	Op      string
	Err     error
}

func (e *ChainReadError) Error() string {
	return fmt.Sprintf("chain read %s %s: %v", e.Op, e.Address, e.Err)
}

func (e *ChainReadError) Unwrap() error { return e.Err }
func (e *ChainReadError) Code() string  { return CodeChainRead }

type InvalidAddressError struct {
	Input string
	Err   error
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid address %q: %v", e.Input, e.Err)
}

func (e *InvalidAddressError) Unwrap() error { return e.Err }
func (e *InvalidAddressError) Code() string  { return CodeInvalidAddress }

type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Code() string { return CodeInvalidInput }

type PoolMigratedError struct {
	Pool string
}

func (e *PoolMigratedError) Error() string {
	return fmt.Sprintf("pool %s already migrated", e.Pool)
}

func (e *PoolMigratedError) Code() string { return CodePoolMigrated }

type NoClaimableFeesError struct {
	Pool string
}

func (e *NoClaimableFeesError) Error() string {
	return fmt.Sprintf("no claimable fees for pool %s", e.Pool)
}

func (e *NoClaimableFeesError) Code() string { return CodeNoClaimableFees }

// TransactionFailedError is a submission or confirmation failure of one
// pipeline step. Signature is empty when the transaction never reached the cluster.
type TransactionFailedError struct {
	Step      string
	Signature string
	Err       error
}

func (e *TransactionFailedError) Error() string {
	if e.Signature == "" {
		return fmt.Sprintf("%s transaction failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s transaction %s failed: %v", e.Step, e.Signature, e.Err)
}

func (e *TransactionFailedError) Unwrap() error { return e.Err }
func (e *TransactionFailedError) Code() string  { return CodeTransactionFailed }

type MissingReferencePriceError struct {
	Mint string
}

func (e *MissingReferencePriceError) Error() string {
	return fmt.Sprintf("no reference price for %s", e.Mint)
}

func (e *MissingReferencePriceError) Code() string { return CodeMissingReferencePrice }

type InsufficientBalanceError struct {
	Mint      string
	Required  uint64
	Available uint64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: need %d, have %d", e.Mint, e.Required, e.Available)
}

func (e *InsufficientBalanceError) Code() string { return CodeInsufficientBalance }

type MissingSignerError struct {
	Role string
}

func (e *MissingSignerError) Error() string {
	return fmt.Sprintf("no %s key configured", e.Role)
}

func (e *MissingSignerError) Code() string { return CodeMissingSigner }

type coder interface {
	Code() string
}

// CodeOf returns the code of the first coded error in err's chain.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeInternal
}

// IsRetryable reports whether repeating the same call may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var (
		readErr *ChainReadError
		txErr   *TransactionFailedError
	)
	if errors.As(err, &readErr) {
		return !errors.Is(readErr, ErrPoolNotFound)
	}
	return errors.As(err, &txErr) || errors.Is(err, context.DeadlineExceeded)
}
