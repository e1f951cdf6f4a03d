package auth

import (
	"testing"
	"time"

	cherr "chatwire/errors"

	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	req := require.New(t)
	service := NewTokenService("a_long_secret_for_unit_tests_only", "chatwire", time.Hour)

	// Given a token issued for a user
	token, err := service.Generate("alice")
	req.NoError(err)
	req.NotEmpty(token)

	// When verifying it
	userID, err := service.Verify(token)

	// Then the bound user id is resolved
	req.NoError(err)
	req.Equal("alice", userID)
}

func TestTokenService_Expired(t *testing.T) {
	req := require.New(t)
	service := NewTokenService("a_long_secret_for_unit_tests_only", "chatwire", -time.Minute)

	token, err := service.Generate("alice")
	req.NoError(err)

	_, err = service.Verify(token)
	req.ErrorIs(err, cherr.ErrInvalidToken)
}

func TestTokenService_WrongSecret(t *testing.T) {
	req := require.New(t)
	issuing := NewTokenService("secret_number_one_padded_out", "chatwire", time.Hour)
	verifying := NewTokenService("secret_number_two_padded_out", "chatwire", time.Hour)

	token, err := issuing.Generate("alice")
	req.NoError(err)

	_, err = verifying.Verify(token)
	req.ErrorIs(err, cherr.ErrInvalidToken)
}

func TestTokenService_Garbage(t *testing.T) {
	req := require.New(t)
	service := NewTokenService("a_long_secret_for_unit_tests_only", "chatwire", time.Hour)

	_, err := service.Verify("not-a-token")
	req.ErrorIs(err, cherr.ErrInvalidToken)
}
