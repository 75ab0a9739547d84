package users_test

import (
	"testing"

	"github.com/jrsteele09/connectin-session/users"
	fakeuserrepo "github.com/jrsteele09/connectin-session/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := users.HashPassword("Correct-pw1")
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash("Correct-pw1", hash))
	require.False(t, users.CheckPasswordHash("wrong", hash))
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, users.ValidatePasswordStrength("Abcdefg1"))
	require.ErrorContains(t, users.ValidatePasswordStrength("Ab1"), "at least 8")
	require.ErrorContains(t, users.ValidatePasswordStrength("abcdefg1"), "uppercase")
	require.ErrorContains(t, users.ValidatePasswordStrength("ABCDEFG1"), "lowercase")
	require.ErrorContains(t, users.ValidatePasswordStrength("Abcdefgh"), "number")
}

func TestSummaryName(t *testing.T) {
	var nilSummary *users.Summary
	require.Equal(t, "", nilSummary.Name())
	require.Equal(t, "alice", (&users.Summary{Username: "alice"}).Name())
	require.Equal(t, "Alice A.", (&users.Summary{Username: "alice", DisplayName: "Alice A."}).Name())
}

func TestFakeAccountRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeAccountRepo()
	account := &users.Account{Username: "alice", DisplayName: "Alice"}
	require.NoError(t, repo.Upsert(account))
	require.NotEmpty(t, account.ID)

	byName, err := repo.GetByUsername("alice")
	require.NoError(t, err)
	require.Equal(t, account.ID, byName.ID)

	byID, err := repo.GetByID(account.ID)
	require.NoError(t, err)
	require.Equal(t, "Alice", byID.Summary().DisplayName)

	require.NoError(t, repo.SetBlocked("alice", true))
	require.True(t, byID.Blocked)

	_, err = repo.GetByUsername("bob")
	require.Error(t, err)
}
