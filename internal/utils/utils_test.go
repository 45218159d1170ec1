package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anon-dialog-server/internal/config"
	"anon-dialog-server/internal/models"
)

func TestTokensRoundTrip(t *testing.T) {
	cfg := &config.Config{
		JWTSecret:                 "access",
		JWTRefreshSecret:          "refresh",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 1,
	}
	user := &models.User{ID: 42, Role: models.RoleAdmin}

	pair, err := GenerateTokens(user, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := ValidateToken(pair.AccessToken, cfg.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "42", claims.Subject)

	_, err = ValidateToken(pair.AccessToken, cfg.JWTRefreshSecret)
	assert.Error(t, err, "access token must not validate as a refresh token")

	again, err := GenerateTokens(user, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, again.RefreshToken)
}

func TestFormatValidationError(t *testing.T) {
	type request struct {
		Mode string `validate:"required,oneof=auto confirm reject"`
	}
	err := Validate(request{Mode: "loud"})
	require.Error(t, err)
	assert.Equal(t, "Mode must be one of: auto confirm reject", FormatValidationError(err))

	err = Validate(request{})
	require.Error(t, err)
	assert.Equal(t, "Mode is required", FormatValidationError(err))
}
