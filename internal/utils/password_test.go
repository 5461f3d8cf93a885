package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-rush/internal/utils"
)

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := utils.HashPassword("hunter2", 4)
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", hash)

	assert.True(t, utils.VerifyPassword(hash, "hunter2"))
	assert.False(t, utils.VerifyPassword(hash, "hunter3"))
	assert.False(t, utils.VerifyPassword("not-a-hash", "hunter2"))
}

func TestHashPasswordClampsCost(t *testing.T) {
	// An out-of-range cost (e.g. an unset env default of 0) must still
	// produce a verifiable hash.
	hash, err := utils.HashPassword("hunter2", 0)
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword(hash, "hunter2"))
}
