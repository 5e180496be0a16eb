package common

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_Validate_ValidUUID(t *testing.T) {
	id := ID("550e8400-e29b-41d4-a716-446655440000")
	assert.NoError(t, id.Validate())
}

func TestID_Validate_EmptyString(t *testing.T) {
	err := ID("").Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")
}

func TestID_Validate_InvalidFormat(t *testing.T) {
	err := ID("not-a-uuid").Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ID format")
}

func TestNewID_GeneratesValidUUID(t *testing.T) {
	assert.NoError(t, NewID().Validate())
	assert.NotEqual(t, NewID(), NewID())
}

func TestTimestamp_MarshalJSON(t *testing.T) {
	ts := Timestamp(time.Date(2023, 10, 27, 10, 0, 0, 0, time.UTC))
	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2023-10-27T10:00:00Z"`, string(data))
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2023-10-27T10:00:00Z"`), &ts))
	assert.Equal(t, time.Date(2023, 10, 27, 10, 0, 0, 0, time.UTC), time.Time(ts))

	assert.Error(t, json.Unmarshal([]byte(`"invalid-date"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`42`), &ts))
}

func TestPagination_Validate(t *testing.T) {
	tests := []struct {
		name    string
		p       Pagination
		wantErr bool
	}{
		{"valid", Pagination{Page: 1, PageSize: 20}, false},
		{"upper bound", Pagination{Page: 3, PageSize: 500}, false},
		{"zero page", Pagination{Page: 0, PageSize: 20}, true},
		{"zero size", Pagination{Page: 1, PageSize: 0}, true},
		{"oversized", Pagination{Page: 1, PageSize: 501}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPagination_Offset(t *testing.T) {
	assert.Equal(t, 0, Pagination{Page: 1, PageSize: 20}.Offset())
	assert.Equal(t, 40, Pagination{Page: 3, PageSize: 20}.Offset())
}

func TestResponses(t *testing.T) {
	ok := NewSuccessResponse(map[string]int{"n": 1})
	assert.True(t, ok.Success)
	assert.Nil(t, ok.Error)

	bad := NewErrorResponse("CHEM_001", "invalid SMILES string")
	assert.False(t, bad.Success)
	require.NotNil(t, bad.Error)
	assert.Equal(t, "CHEM_001", bad.Error.Code)

	data, err := json.Marshal(bad)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"success":false`)
}
