package delivery

import "errors"

var (
	// ErrTransactionFailed is returned when the ledger reports an execution error for the transaction.
	ErrTransactionFailed = errors.New("transaction failed")
	// ErrConfirmationTimeout is returned when the commitment is not reached in time.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	// ErrBlockhashExpired is returned once the block height passes the transaction's last valid height.
	ErrBlockhashExpired = errors.New("blockhash expired")
	// ErrRelayRejected is returned when the relay answers with a JSON-RPC error envelope.
	ErrRelayRejected = errors.New("relay rejected transaction")
	// ErrUnknownPath is returned for a delivery path other than rpc or relay.
	ErrUnknownPath = errors.New("unknown delivery path")
)
