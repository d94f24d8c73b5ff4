package sasl

import "errors"

// externalClient implements EXTERNAL (RFC 4422 appendix A): the server
// derives the identity from the channel itself (the TLS client
// certificate), so Identity here is only the optional authorization
// identity CreateConnection.sendAuthenticate sends as the initial
// response, never a credential.
type externalClient struct {
	Identity string
}

func (a *externalClient) Start() (mech string, ir []byte, err error) {
	mech = "EXTERNAL"
	ir = []byte(a.Identity)
	return mech, ir, nil
}

func (a *externalClient) Next(challenge []byte) (response []byte, err error) {
	return nil, errors.New("sasl: EXTERNAL carries no further exchange, unexpected server challenge")
}

// NewExternalClient implements the EXTERNAL authentication mechanism, as
// described in RFC 4422. Identity may be left blank to act as the
// identity already established on the connection (e.g. by a TLS client
// certificate), which is the common case for this mechanism.
func NewExternalClient(identity string) Client {
	return &externalClient{identity}
}
