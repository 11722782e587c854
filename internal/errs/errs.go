// Package errs implements the taxonomy of proving-service errors.
package errs

import "fmt"

// Type categorizes a proving-service error per the input/oracle/integrity/
// capacity/verification taxonomy.
type Type int

const (
	// Input errors.
	TypeBadHeightRange Type = iota
	TypeBadAddress
	TypeBadNamespaceHex

	// Oracle errors.
	TypeIndexerBlockNotFound
	TypeIndexerServerError
	TypeIndexerInconsistent
	TypeDaRPCError
	TypeEvmRPCError
	TypeLightClientQueryError

	// Integrity errors (fatal; abort proof generation).
	TypeHeaderHashMismatch
	TypeBadSquareGeometry
	TypeNmtCoverageMismatch
	TypeRowRangeProofFailed
	TypeDataHashProofFailed
	TypeKeccakMismatch
	TypeExecutionFailure
	TypeMembershipProofFailed

	// Capacity/config errors.
	TypeAggregationTooSmall
	TypeMissingConfig
	TypeProofSerializationError

	// Verification errors.
	TypeGroth16Invalid

	// Request-level state errors.
	TypeAlreadyCurrent
)

func (t Type) String() string {
	switch t {
	case TypeBadHeightRange:
		return "bad_height_range"
	case TypeBadAddress:
		return "bad_address"
	case TypeBadNamespaceHex:
		return "bad_namespace_hex"
	case TypeIndexerBlockNotFound:
		return "indexer_block_not_found"
	case TypeIndexerServerError:
		return "indexer_server_error"
	case TypeIndexerInconsistent:
		return "indexer_inconsistent"
	case TypeDaRPCError:
		return "da_rpc_error"
	case TypeEvmRPCError:
		return "evm_rpc_error"
	case TypeLightClientQueryError:
		return "light_client_query_error"
	case TypeHeaderHashMismatch:
		return "header_hash_mismatch"
	case TypeBadSquareGeometry:
		return "bad_square_geometry"
	case TypeNmtCoverageMismatch:
		return "nmt_coverage_mismatch"
	case TypeRowRangeProofFailed:
		return "row_range_proof_failed"
	case TypeDataHashProofFailed:
		return "data_hash_proof_failed"
	case TypeKeccakMismatch:
		return "keccak_mismatch"
	case TypeExecutionFailure:
		return "execution_failure"
	case TypeMembershipProofFailed:
		return "membership_proof_failed"
	case TypeAggregationTooSmall:
		return "aggregation_too_small"
	case TypeMissingConfig:
		return "missing_config"
	case TypeProofSerializationError:
		return "proof_serialization_error"
	case TypeGroth16Invalid:
		return "groth16_invalid"
	case TypeAlreadyCurrent:
		return "already_current"
	default:
		return "unknown"
	}
}

// Integrity reports whether a Type is in the fatal/abort-worthy integrity
// category: witnesses that fail these checks must never produce a proof.
func (t Type) Integrity() bool {
	switch t {
	case TypeHeaderHashMismatch, TypeBadSquareGeometry, TypeNmtCoverageMismatch,
		TypeRowRangeProofFailed, TypeDataHashProofFailed, TypeKeccakMismatch, TypeExecutionFailure,
		TypeMembershipProofFailed:
		return true
	default:
		return false
	}
}

// ProverErr is a structured error carrying a classification, message, cause,
// and free-form context, modeled on the teacher's rollback.RollbackError.
type ProverErr struct {
	Kind    Type
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *ProverErr) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, enabling errors.Is/errors.As.
func (e *ProverErr) Unwrap() error {
	return e.Cause
}

// WithCause attaches an underlying error.
func (e *ProverErr) WithCause(cause error) *ProverErr {
	e.Cause = cause
	return e
}

// WithContext attaches a free-form context key/value.
func (e *ProverErr) WithContext(key string, value any) *ProverErr {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates a ProverErr of the given kind.
func New(kind Type, message string) *ProverErr {
	return &ProverErr{Kind: kind, Message: message}
}

// Constructors for the categories called out most often by callers.

func HeaderHashMismatch(msg string) *ProverErr        { return New(TypeHeaderHashMismatch, msg) }
func BadSquareGeometry(msg string) *ProverErr         { return New(TypeBadSquareGeometry, msg) }
func NmtCoverageMismatch(msg string) *ProverErr        { return New(TypeNmtCoverageMismatch, msg) }
func RowRangeProofFailed(msg string) *ProverErr       { return New(TypeRowRangeProofFailed, msg) }
func DataHashProofFailed(msg string) *ProverErr       { return New(TypeDataHashProofFailed, msg) }
func KeccakMismatch(msg string) *ProverErr            { return New(TypeKeccakMismatch, msg) }
func ExecutionFailure(msg string) *ProverErr          { return New(TypeExecutionFailure, msg) }
func MembershipProofFailed(msg string) *ProverErr     { return New(TypeMembershipProofFailed, msg) }
func IndexerBlockNotFound(msg string) *ProverErr      { return New(TypeIndexerBlockNotFound, msg) }
func IndexerServerError(msg string) *ProverErr        { return New(TypeIndexerServerError, msg) }
func IndexerInconsistent(msg string) *ProverErr       { return New(TypeIndexerInconsistent, msg) }
func AggregationTooSmall(msg string) *ProverErr       { return New(TypeAggregationTooSmall, msg) }
func AlreadyCurrent(msg string) *ProverErr            { return New(TypeAlreadyCurrent, msg) }
func MissingConfig(msg string) *ProverErr             { return New(TypeMissingConfig, msg) }
func BadNamespaceHex(msg string) *ProverErr           { return New(TypeBadNamespaceHex, msg) }
func BadHeightRange(msg string) *ProverErr            { return New(TypeBadHeightRange, msg) }
func DaRPCError(msg string) *ProverErr                { return New(TypeDaRPCError, msg) }
func EvmRPCError(msg string) *ProverErr               { return New(TypeEvmRPCError, msg) }
func LightClientQueryError(msg string) *ProverErr     { return New(TypeLightClientQueryError, msg) }

// DaRPCErrorf builds a TypeDaRPCError with a formatted message.
func DaRPCErrorf(format string, args ...any) *ProverErr {
	return New(TypeDaRPCError, fmt.Sprintf(format, args...))
}

// EvmRPCErrorf builds a TypeEvmRPCError with a formatted message.
func EvmRPCErrorf(format string, args ...any) *ProverErr {
	return New(TypeEvmRPCError, fmt.Sprintf(format, args...))
}
