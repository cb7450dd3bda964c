package guardian

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zivra/zivra-custody/pkg/errors"
)

func TestAddGuardianValidation(t *testing.T) {
	registry := NewRegistry(nil)
	ctx := context.Background()
	ownerID := uuid.New()

	tests := []struct {
		name        string
		guardian    string
		contact     string
		wantMessage string
	}{
		{name: "empty name", guardian: "", contact: "alice@example.com", wantMessage: "name"},
		{name: "blank name", guardian: "   ", contact: "alice@example.com", wantMessage: "name"},
		{name: "empty contact", guardian: "Alice", contact: "", wantMessage: "contact"},
		{name: "blank contact", guardian: "Alice", contact: "  ", wantMessage: "contact"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.AddGuardian(ctx, ownerID, tt.guardian, tt.contact, "friend")
			require.Error(t, err)

			appErr, ok := apperrors.IsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrCodeInvalidParams, appErr.Code)
			assert.Contains(t, appErr.Detail, tt.wantMessage)
		})
	}
}
