package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AppError represents an application-level error with HTTP status code
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Shard error codes
const (
	ErrCodeInvalidShard     = "invalid_shard"
	ErrCodeReconstruction   = "reconstruction_failed"
	ErrCodeEncryptionFailed = "encryption_failed"
)

// Policy error codes
const (
	ErrCodeInvalidPolicyType = "invalid_policy_type"
	ErrCodeInvalidParams     = "invalid_params"
	ErrCodeDuplicatePolicy   = "duplicate_policy"
	ErrCodePolicyDenied      = "policy_denied"
)

// Guardian error codes
const (
	ErrCodeMaxGuardiansReached   = "max_guardians_reached"
	ErrCodeNotAuthorizedGuardian = "not_authorized_guardian"
	ErrCodeDuplicateVote         = "duplicate_vote"
)

// Recovery error codes
const (
	ErrCodeInsufficientGuardians = "insufficient_guardians"
	ErrCodeRecoveryInProgress    = "recovery_in_progress"
	ErrCodeRecoveryNotFound      = "recovery_not_found"
)

// Chain error codes
const (
	ErrCodeChainNotSupported = "chain_not_supported"
	ErrCodeSimulationFailed  = "simulation_failed"
	ErrCodeBroadcastFailed   = "broadcast_failed"
)

// Generic error codes
const (
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeForbidden     = "forbidden"
	ErrCodeNotFound      = "not_found"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeConflict      = "conflict"
	ErrCodeRateLimited   = "rate_limited"
	ErrCodeInternalError = "internal_error"
	ErrCodeProofRejected = "proof_rejected"
)

// Predefined errors
var (
	ErrUnauthorized = &AppError{
		Code:       ErrCodeUnauthorized,
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       ErrCodeForbidden,
		Message:    "Access denied",
		StatusCode: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       ErrCodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       ErrCodeBadRequest,
		Message:    "Invalid request parameters",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalError = &AppError{
		Code:       ErrCodeInternalError,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewWithDetail creates a new AppError with additional detail
func NewWithDetail(code, message, detail string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Detail:     detail,
		StatusCode: statusCode,
	}
}

// InvalidShard creates an invalid shard error (malformed or tampered payload)
func InvalidShard(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidShard,
		Message:    "Shard payload is malformed or failed integrity verification",
		Detail:     detail,
		StatusCode: http.StatusBadRequest,
	}
}

// ReconstructionFailed creates a shard mismatch error (wrong wallet or incompatible pair)
func ReconstructionFailed(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeReconstruction,
		Message:    "Shards do not reconstruct the wallet key",
		Detail:     detail,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// EncryptionFailed creates a shard sealing error
func EncryptionFailed(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeEncryptionFailed,
		Message:    "Shard encryption failed",
		Detail:     detail,
		StatusCode: http.StatusInternalServerError,
	}
}

// PolicyDenied creates a policy violation error carrying operator-readable reasons
func PolicyDenied(violations []string) *AppError {
	return &AppError{
		Code:       ErrCodePolicyDenied,
		Message:    "Transaction violates one or more active policies",
		Detail:     strings.Join(violations, "; "),
		StatusCode: http.StatusForbidden,
	}
}

// DuplicatePolicy creates a duplicate active policy error
func DuplicatePolicy(policyType string) *AppError {
	return &AppError{
		Code:       ErrCodeDuplicatePolicy,
		Message:    "An active policy of this type already exists",
		Detail:     fmt.Sprintf("type: %s", policyType),
		StatusCode: http.StatusConflict,
	}
}

// InvalidPolicyType creates an unknown policy type error
func InvalidPolicyType(policyType string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidPolicyType,
		Message:    "Unknown policy type",
		Detail:     fmt.Sprintf("type: %s", policyType),
		StatusCode: http.StatusBadRequest,
	}
}

// InvalidParams creates a policy parameter validation error
func InvalidParams(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidParams,
		Message:    "Policy parameters failed validation",
		Detail:     detail,
		StatusCode: http.StatusBadRequest,
	}
}

// MaxGuardiansReached creates a guardian limit error
func MaxGuardiansReached(limit int) *AppError {
	return &AppError{
		Code:       ErrCodeMaxGuardiansReached,
		Message:    "Guardian limit reached",
		Detail:     fmt.Sprintf("limit: %d", limit),
		StatusCode: http.StatusConflict,
	}
}

// NotAuthorizedGuardian creates an error for votes from outside the request snapshot
func NotAuthorizedGuardian(guardianID string) *AppError {
	return &AppError{
		Code:       ErrCodeNotAuthorizedGuardian,
		Message:    "Guardian is not part of this recovery request",
		Detail:     fmt.Sprintf("guardian_id: %s", guardianID),
		StatusCode: http.StatusForbidden,
	}
}

// DuplicateVote creates an error for repeated votes on the same request
func DuplicateVote(guardianID string) *AppError {
	return &AppError{
		Code:       ErrCodeDuplicateVote,
		Message:    "Guardian has already voted on this request",
		Detail:     fmt.Sprintf("guardian_id: %s", guardianID),
		StatusCode: http.StatusConflict,
	}
}

// InsufficientGuardians creates an error for recovery with too few guardians
func InsufficientGuardians(active, required int) *AppError {
	return &AppError{
		Code:       ErrCodeInsufficientGuardians,
		Message:    "Not enough active guardians to initiate recovery",
		Detail:     fmt.Sprintf("active: %d, required: %d", active, required),
		StatusCode: http.StatusPreconditionFailed,
	}
}

// RecoveryInProgress creates an error for a second pending request
func RecoveryInProgress(ownerID string) *AppError {
	return &AppError{
		Code:       ErrCodeRecoveryInProgress,
		Message:    "A recovery request is already pending for this owner",
		Detail:     fmt.Sprintf("owner_id: %s", ownerID),
		StatusCode: http.StatusConflict,
	}
}

// RecoveryNotFound creates a missing recovery request error
func RecoveryNotFound(requestID string) *AppError {
	return &AppError{
		Code:       ErrCodeRecoveryNotFound,
		Message:    "Recovery request not found",
		Detail:     fmt.Sprintf("request_id: %s", requestID),
		StatusCode: http.StatusNotFound,
	}
}

// ChainNotSupported creates an unsupported chain family error
func ChainNotSupported(family string) *AppError {
	return &AppError{
		Code:       ErrCodeChainNotSupported,
		Message:    "Chain family is not supported",
		Detail:     fmt.Sprintf("chain_family: %s", family),
		StatusCode: http.StatusBadRequest,
	}
}

// SimulationFailed creates a dry-run failure error
func SimulationFailed(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeSimulationFailed,
		Message:    "Transaction simulation failed",
		Detail:     detail,
		StatusCode: http.StatusBadGateway,
	}
}

// BroadcastFailed creates a chain submission error
func BroadcastFailed(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeBroadcastFailed,
		Message:    "Transaction broadcast failed",
		Detail:     detail,
		StatusCode: http.StatusBadGateway,
	}
}

// ProofRejected creates an authentication proof error (stale, reused or unbound)
func ProofRejected(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeProofRejected,
		Message:    "Authentication proof rejected",
		Detail:     detail,
		StatusCode: http.StatusUnauthorized,
	}
}

// WalletNotFound creates a wallet not found error
func WalletNotFound(walletID string) *AppError {
	return &AppError{
		Code:       ErrCodeNotFound,
		Message:    "Wallet not found",
		Detail:     fmt.Sprintf("wallet_id: %s", walletID),
		StatusCode: http.StatusNotFound,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
