package domain

import (
	"support-flow/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserID_Validate(t *testing.T) {
	tests := []struct {
		name    string
		id      UserID
		wantErr bool
	}{
		{name: "uuid", id: "8c7d8f4e-0b1c-4d3a-9c55-1f0b7a3e2d10"},
		{name: "configured agent", id: "ADMIN_ID"},
		{name: "empty", id: "", wantErr: true},
		{name: "key separator", id: "a:b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.id.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, errors.ErrValidation)
				return
			}
			require.NoError(t, err)
		})
	}
	require.ErrorIs(t, ConversationID("a:b").Validate(), errors.ErrValidation)
}
