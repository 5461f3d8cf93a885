package utils_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-rush/internal/utils"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := utils.NewAccessToken("secret", 42, "alice", 15)
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), tok.Exp, 5*time.Second)

	id, err := utils.ParseAccessToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id.UserID)
	assert.Equal(t, "alice", id.Username)
}

func TestParseAccessTokenRejectsBadInput(t *testing.T) {
	tok, err := utils.NewAccessToken("secret", 42, "alice", 15)
	require.NoError(t, err)

	_, err = utils.ParseAccessToken("other-secret", tok.Token)
	assert.Error(t, err)

	_, err = utils.ParseAccessToken("secret", tok.Token+"x")
	assert.Error(t, err)

	_, err = utils.ParseAccessToken("secret", "not-a-jwt")
	assert.Error(t, err)

	_, err = utils.ParseAccessToken("secret", "")
	assert.Error(t, err)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	tok, err := utils.NewAccessToken("secret", 42, "alice", -1)
	require.NoError(t, err)

	_, err = utils.ParseAccessToken("secret", tok.Token)
	assert.Error(t, err)
}
