package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes follow the "<MODULE>_<NNN>" convention.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Aliases used by handlers and infrastructure code.
const (
	CodeUnknown        = ErrorCode("")
	CodeOK             = ErrorCode("OK")
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeUnauthorized   = ErrCodeUnauthorized
	CodeForbidden      = ErrCodeForbidden
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeRateLimit      = ErrCodeTooManyRequests
	CodeNotImplemented = ErrCodeNotImplemented
	CodeValidation     = ErrCodeValidation

	CodeCompoundNotFound = ErrCodeCompoundNotFound
	CodeInvalidSMILES    = ErrCodeInvalidSMILES
)

// Chemistry Module Error Codes
const (
	ErrCodeInvalidSMILES         ErrorCode = "CHEM_001"
	ErrCodeInvalidInChI          ErrorCode = "CHEM_002"
	ErrCodeInvalidFormula        ErrorCode = "CHEM_003"
	ErrCodeInvalidCAS            ErrorCode = "CHEM_004"
	ErrCodeCompoundNotFound      ErrorCode = "CHEM_005"
	ErrCodeCompoundAlreadyExists ErrorCode = "CHEM_006"
	ErrCodeUnknownElement        ErrorCode = "CHEM_007"
	ErrCodeValenceViolation      ErrorCode = "CHEM_008"
	ErrCodeMoleculeTooLarge      ErrorCode = "CHEM_009"
	ErrCodeInvalidMolBlock       ErrorCode = "CHEM_010"
	ErrCodeFingerprintFailed     ErrorCode = "CHEM_011"
	ErrCodeSimilaritySearch      ErrorCode = "CHEM_012"
)

// Geometry Module Error Codes
const (
	ErrCodeEmbeddingFailed     ErrorCode = "GEO_001"
	ErrCodeAtomIndexOutOfRange ErrorCode = "GEO_002"
	ErrCodeDegenerateGeometry  ErrorCode = "GEO_003"
	ErrCodeMeasureKindInvalid  ErrorCode = "GEO_004"
)

// Resolution / Data Source Error Codes
const (
	ErrCodeDataSourceUnavailable ErrorCode = "SRC_001"
	ErrCodeDataSourceRateLimited ErrorCode = "SRC_002"
	ErrCodeDataSourceAuthFailed  ErrorCode = "SRC_003"
	ErrCodeDataSourceParseError  ErrorCode = "SRC_004"
	ErrCodeEntityNotResolved     ErrorCode = "SRC_005"
)

// AI Module Error Codes
const (
	ErrCodeAIModelNotAvailable ErrorCode = "AI_001"
	ErrCodeAIInferenceFailed   ErrorCode = "AI_002"
	ErrCodeAIInputInvalid      ErrorCode = "AI_003"
)

// Infrastructure aliases.
const (
	CodeDBConnectionError = ErrCodeDatabaseError
	CodeDBQueryError      = ErrCodeDatabaseError
	CodeCacheError        = ErrCodeCacheError
	CodeSearchError       = ErrCodeSimilaritySearch
	CodeMessageQueueError = ErrCodeExternalService
	CodeStorageError      = ErrCodeExternalService
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusForbidden,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeInvalidSMILES:         http.StatusUnprocessableEntity,
	ErrCodeInvalidInChI:          http.StatusUnprocessableEntity,
	ErrCodeInvalidFormula:        http.StatusUnprocessableEntity,
	ErrCodeInvalidCAS:            http.StatusUnprocessableEntity,
	ErrCodeCompoundNotFound:      http.StatusNotFound,
	ErrCodeCompoundAlreadyExists: http.StatusConflict,
	ErrCodeUnknownElement:        http.StatusUnprocessableEntity,
	ErrCodeValenceViolation:      http.StatusUnprocessableEntity,
	ErrCodeMoleculeTooLarge:      http.StatusRequestEntityTooLarge,
	ErrCodeInvalidMolBlock:       http.StatusUnprocessableEntity,
	ErrCodeFingerprintFailed:     http.StatusInternalServerError,
	ErrCodeSimilaritySearch:      http.StatusInternalServerError,

	ErrCodeEmbeddingFailed:     http.StatusUnprocessableEntity,
	ErrCodeAtomIndexOutOfRange: http.StatusBadRequest,
	ErrCodeDegenerateGeometry:  http.StatusUnprocessableEntity,
	ErrCodeMeasureKindInvalid:  http.StatusBadRequest,

	ErrCodeDataSourceUnavailable: http.StatusServiceUnavailable,
	ErrCodeDataSourceRateLimited: http.StatusTooManyRequests,
	ErrCodeDataSourceAuthFailed:  http.StatusBadGateway,
	ErrCodeDataSourceParseError:  http.StatusBadGateway,
	ErrCodeEntityNotResolved:     http.StatusNotFound,

	ErrCodeAIModelNotAvailable: http.StatusServiceUnavailable,
	ErrCodeAIInferenceFailed:   http.StatusBadGateway,
	ErrCodeAIInputInvalid:      http.StatusBadRequest,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization error",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeInvalidSMILES:         "invalid SMILES string",
	ErrCodeInvalidInChI:          "invalid InChI string",
	ErrCodeInvalidFormula:        "invalid molecular formula",
	ErrCodeInvalidCAS:            "invalid CAS registry number",
	ErrCodeCompoundNotFound:      "compound not found",
	ErrCodeCompoundAlreadyExists: "compound already exists",
	ErrCodeUnknownElement:        "unknown element symbol",
	ErrCodeValenceViolation:      "valence violation",
	ErrCodeMoleculeTooLarge:      "molecule too large",
	ErrCodeInvalidMolBlock:       "invalid MOL block",
	ErrCodeFingerprintFailed:     "fingerprint generation failed",
	ErrCodeSimilaritySearch:      "similarity search failed",

	ErrCodeEmbeddingFailed:     "3D embedding failed",
	ErrCodeAtomIndexOutOfRange: "atom index out of range",
	ErrCodeDegenerateGeometry:  "degenerate geometry",
	ErrCodeMeasureKindInvalid:  "unsupported measurement kind",

	ErrCodeDataSourceUnavailable: "data source unavailable",
	ErrCodeDataSourceRateLimited: "data source rate limited",
	ErrCodeDataSourceAuthFailed:  "data source authentication failed",
	ErrCodeDataSourceParseError:  "data source response could not be parsed",
	ErrCodeEntityNotResolved:     "chemical entity could not be resolved",

	ErrCodeAIModelNotAvailable: "language model not available",
	ErrCodeAIInferenceFailed:   "language model inference failed",
	ErrCodeAIInputInvalid:      "invalid input for language model",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
