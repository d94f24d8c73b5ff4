package sasl_test

import (
	"testing"

	"github.com/trojita/goimap-engine/sasl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainClientStartEncodesIdentityUsernamePassword(t *testing.T) {
	c := sasl.NewPlainClient("alice", "hunter2", "")
	mech, ir, err := c.Start()
	require.NoError(t, err)
	assert.Equal(t, "PLAIN", mech)
	assert.Equal(t, "\x00alice\x00hunter2", string(ir))
}

func TestPlainClientStartRejectsNULInCredentials(t *testing.T) {
	c := sasl.NewPlainClient("ali\x00ce", "hunter2", "")
	_, _, err := c.Start()
	assert.Error(t, err, "a NUL byte in the username would smuggle an extra PLAIN field past the server")
}

func TestPlainClientNextErrorsOnUnexpectedChallenge(t *testing.T) {
	c := sasl.NewPlainClient("alice", "hunter2", "")
	_, err := c.Next([]byte("anything"))
	assert.Error(t, err)
}

func TestExternalClientStartCarriesIdentityAsInitialResponse(t *testing.T) {
	c := sasl.NewExternalClient("alice@example.com")
	mech, ir, err := c.Start()
	require.NoError(t, err)
	assert.Equal(t, "EXTERNAL", mech)
	assert.Equal(t, "alice@example.com", string(ir))
}

func TestXoauth2ClientStartEncodesBearerToken(t *testing.T) {
	c := sasl.NewXoauth2Client("alice", "ya29.token")
	mech, ir, err := c.Start()
	require.NoError(t, err)
	assert.Equal(t, "XOAUTH2", mech)
	assert.Equal(t, "user=alice\x01auth=Bearer ya29.token\x01\x01", string(ir))
}

func TestXoauth2ClientStartRejectsFieldSeparatorInToken(t *testing.T) {
	c := sasl.NewXoauth2Client("alice", "ya29.to\x01ken")
	_, _, err := c.Start()
	assert.Error(t, err, "a literal \\x01 in the token would terminate the XOAUTH2 response early")
}
