package sasl

import (
	"errors"
	"strings"
)

// xoauth2Client implements XOAUTH2, as described in
// https://developers.google.com/gmail/xoauth2_protocol. Like PLAIN, the
// entire exchange rides on AUTHENTICATE's initial response, so Next only
// runs against a server that challenges instead of honoring SASL-IR.
type xoauth2Client struct {
	Username string
	Token    string
}

func (a *xoauth2Client) Start() (mech string, ir []byte, err error) {
	mech = "XOAUTH2"
	if strings.ContainsRune(a.Username, '\x01') || strings.ContainsRune(a.Token, '\x01') {
		return mech, nil, errors.New("sasl: XOAUTH2 username or token contains the \\x01 field separator")
	}
	ir = []byte("user=" + a.Username + "\x01auth=Bearer " + a.Token + "\x01\x01")
	return mech, ir, nil
}

func (a *xoauth2Client) Next(challenge []byte) (response []byte, err error) {
	return nil, errors.New("sasl: XOAUTH2 sent its whole response as the initial response, unexpected server challenge")
}

// NewXoauth2Client implements the XOAUTH2 authentication mechanism. token
// is the bearer token CreateConnection.sendAuthenticate obtained out of
// band (e.g. from an OAuth2 refresh flow); it is never a password.
func NewXoauth2Client(username, token string) Client {
	return &xoauth2Client{username, token}
}
