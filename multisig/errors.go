package multisig

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// Error kinds returned by the workflow components. Callers match them with errors.Is; components
// wrap them with context using fmt.Errorf("...: %w", kind).
var (
	ErrInvalidAddress              = errors.New("invalid address")
	ErrInvalidThreshold            = errors.New("threshold must be greater than 0")
	ErrDecodeFailed                = errors.New("failed to decode calldata")
	ErrNonceMismatch               = errors.New("nonce mismatch")
	ErrNotOwner                    = errors.New("address is not an owner")
	ErrSignatureVerificationFailed = errors.New("signature verification failed")
	ErrUserRejected                = errors.New("user rejected the request")
	ErrPermissionDenied            = errors.New("permission denied")
	ErrContractCallFailed          = errors.New("contract call failed")
)

// userRejectedCode is the EIP-1193 provider error code for a request the user declined.
const userRejectedCode = 4001

// IsUserRejected reports whether err is a wallet cancellation. Besides ErrUserRejected it
// recognizes EIP-1193 error code 4001 and the rejection text wallets put in their messages.
func IsUserRejected(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "user rejected")
}

var messages = []struct {
	kind error
	msg  string
}{
	{ErrUserRejected, "User rejected the request"},
	{ErrInvalidAddress, "Invalid address"},
	{ErrInvalidThreshold, "Threshold must be greater than 0"},
	{ErrNotOwner, "Address is not Owner"},
	{ErrDecodeFailed, "Failed to decode function data"},
	{ErrNonceMismatch, "Nonce does not match the multisig contract"},
	{ErrSignatureVerificationFailed, "Signature verification failed: address mismatch"},
	{ErrPermissionDenied, "Timelock operation is not executable"},
	{ErrContractCallFailed, "Transaction execution failed"},
}

// ErrorMessage returns a short user facing message for err. Cancellations map to the rejection
// message so callers can show it without alarming error styling.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsUserRejected(err) {
		return messages[0].msg
	}
	for _, m := range messages {
		if errors.Is(err, m.kind) {
			return m.msg
		}
	}

	return "unknown error"
}
