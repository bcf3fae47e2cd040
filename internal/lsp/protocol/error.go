package protocol

// LSP-specific JSON-RPC error codes.
const (
	CodeRequestFailed    int64 = -32803
	CodeRequestCancelled int64 = -32800
)
