package errors

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "COMMON_001", ErrCodeInternal.String())
}

func TestHTTPStatusForCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeInternal, 500},
		{ErrCodeBadRequest, 400},
		{ErrCodeNotFound, 404},
		{ErrCodeConflict, 409},
		{ErrCodeValidation, 422},
		{ErrCodeInvalidSMILES, 422},
		{ErrCodeAtomIndexOutOfRange, 400},
		{ErrCodeDataSourceRateLimited, 429},
		{ErrorCode("UNKNOWN"), 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, HTTPStatusForCode(tt.code), tt.code)
	}
}

func TestDefaultMessageForCode(t *testing.T) {
	assert.Equal(t, "internal server error", DefaultMessageForCode(ErrCodeInternal))
	assert.Equal(t, "invalid SMILES string", DefaultMessageForCode(ErrCodeInvalidSMILES))
	assert.Equal(t, "unknown error", DefaultMessageForCode(ErrorCode("UNKNOWN")))
}

func TestIsClientServerError(t *testing.T) {
	assert.True(t, IsClientError(ErrCodeBadRequest))
	assert.False(t, IsClientError(ErrCodeInternal))
	assert.True(t, IsServerError(ErrCodeInternal))
	assert.False(t, IsServerError(ErrCodeInvalidCAS))
}

func TestModuleForCode(t *testing.T) {
	assert.Equal(t, "COMMON", ModuleForCode(ErrCodeInternal))
	assert.Equal(t, "CHEM", ModuleForCode(ErrCodeCompoundNotFound))
	assert.Equal(t, "GEO", ModuleForCode(ErrCodeEmbeddingFailed))
	assert.Equal(t, "SRC", ModuleForCode(ErrCodeDataSourceUnavailable))
	assert.Equal(t, "AI", ModuleForCode(ErrCodeAIModelNotAvailable))
	assert.Equal(t, "UNKNOWN", ModuleForCode(ErrorCode("")))
}

func TestErrorCodeFormat_Convention(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z]+_\d{3}$`)
	for code := range ErrorCodeHTTPStatus {
		assert.Regexp(t, re, string(code))
		_, hasMsg := ErrorCodeMessage[code]
		assert.True(t, hasMsg, "missing default message for %s", code)
	}
}
