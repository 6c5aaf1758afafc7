package token

import (
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tenant-auth-gateway/internal/autherr"
)

func TestExtractBearer_Valid(t *testing.T) {
	tok, err := ExtractBearer("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)
}

func TestExtractBearer_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing", "", "Missing Authorization header"},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "Invalid Authorization header format. Expected: Bearer <token>"},
		{"lowercase scheme", "bearer abc", "Invalid Authorization header format. Expected: Bearer <token>"},
		{"no token", "Bearer", "Invalid Authorization header format. Expected: Bearer <token>"},
		{"empty token", "Bearer ", "Invalid Authorization header format. Expected: Bearer <token>"},
		{"three parts", "Bearer abc def", "Invalid Authorization header format. Expected: Bearer <token>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractBearer(tt.header)
			require.Error(t, err)

			ae, ok := autherr.As(err)
			require.True(t, ok)
			assert.Equal(t, autherr.KindAuthentication, ae.Kind)
			assert.Equal(t, tt.message, ae.Message)
		})
	}
}

func TestExtractAccountID(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		names  []string
		want   int64
		wantOK bool
	}{
		{"camel case", "accountId=99", nil, 99, true},
		{"snake case", "account_id=77", nil, 77, true},
		{"first name wins", "accountId=1&account_id=2", nil, 1, true},
		{"absent", "foo=bar", nil, 0, false},
		{"negative", "accountId=-1", nil, 0, false},
		{"zero", "accountId=0", nil, 0, false},
		{"not a number", "accountId=abc", nil, 0, false},
		{"above safe bound", "accountId=" + strconv.FormatInt(MaxSafeID+1, 10), nil, 0, false},
		{"at safe bound", "accountId=" + strconv.FormatInt(MaxSafeID, 10), nil, MaxSafeID, true},
		{"invalid falls through to next", "accountId=abc&account_id=5", nil, 5, true},
		{"custom names", "aid=12&accountId=3", []string{"aid"}, 12, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			got, ok := ExtractAccountID(values, tt.names)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
