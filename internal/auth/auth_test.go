package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticTokenAuthenticator(t *testing.T) {
	t.Parallel()

	authenticator := NewStaticTokenAuthenticator(map[string]string{
		"tok-alice": "alice",
		"tok-bob":   "bob",
	})

	tests := []struct {
		name       string
		header     string
		wantUserID string
		wantErr    bool
	}{
		{
			name:       "valid token",
			header:     "Bearer tok-alice",
			wantUserID: "alice",
		},
		{
			name:       "scheme is case insensitive",
			header:     "bearer tok-bob",
			wantUserID: "bob",
		},
		{
			name:    "unknown token",
			header:  "Bearer tok-mallory",
			wantErr: true,
		},
		{
			name:    "missing header",
			header:  "",
			wantErr: true,
		},
		{
			name:    "wrong scheme",
			header:  "Basic tok-alice",
			wantErr: true,
		},
		{
			name:    "empty token",
			header:  "Bearer ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest("GET", "/api/v0/sites", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			caller, err := authenticator.Authenticate(req)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnauthenticated)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUserID, caller.UserID)
		})
	}
}
