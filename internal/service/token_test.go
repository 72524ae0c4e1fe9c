package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_IssueAndParse(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	token, exp, err := m.Issue("alice", RoleOperator)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	sub, role, err := m.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
	assert.Equal(t, RoleOperator, role)
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	_, _, err := m.Issue("alice", "admin")
	assert.ErrorIs(t, err, ErrUnknownRole)

	_, _, err = m.Issue(" ", RoleViewer)
	assert.Error(t, err)

	token, _, err := m.Issue("bob", RoleViewer)
	require.NoError(t, err)

	_, _, err = NewTokenManager("other-secret", time.Hour).ParseAccess(token)
	assert.Error(t, err)

	expired, _, err := NewTokenManager("test-secret", -time.Minute).Issue("bob", RoleViewer)
	require.NoError(t, err)
	_, _, err = m.ParseAccess(expired)
	assert.Error(t, err)

	_, _, err = m.ParseAccess("not-a-token")
	assert.Error(t, err)
}
