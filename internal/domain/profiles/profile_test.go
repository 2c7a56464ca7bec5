package profiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIdentityPriority(t *testing.T) {
	identity, ok := ResolveIdentity("fp-1", "cust-1", "a@b.com")
	require.True(t, ok)
	assert.Equal(t, "fp-1", identity.VisitorID)
	assert.Equal(t, SourceFingerprint, identity.Source)

	identity, ok = ResolveIdentity("", "cust-1", "a@b.com")
	require.True(t, ok)
	assert.Equal(t, "cust-1", identity.VisitorID)
	assert.Equal(t, SourceCustomerID, identity.Source)

	identity, ok = ResolveIdentity("", "", "a@b.com")
	require.True(t, ok)
	assert.Equal(t, "a@b.com", identity.VisitorID)
	assert.Equal(t, SourceEmail, identity.Source)
}

func TestResolveIdentityAnonymous(t *testing.T) {
	_, ok := ResolveIdentity("", "", "")
	assert.False(t, ok)
}

func TestHasHistory(t *testing.T) {
	assert.False(t, HasHistory(2, 3))
	assert.True(t, HasHistory(3, 3))
	assert.True(t, HasHistory(10, 3))
	assert.True(t, HasHistory(0, 0))
}
