package sasl

import "errors"

// plainClient implements the PLAIN mechanism (RFC 4616) for
// CreateConnection.sendAuthenticate: the whole exchange is carried in the
// AUTHENTICATE command's own initial response, so Next is only ever
// reached if a server ignores SASL-IR and challenges anyway.
type plainClient struct {
	Username string
	Password string
	Identity string
}

func (a *plainClient) Start() (mech string, ir []byte, err error) {
	mech = "PLAIN"
	if err := checkNoNUL(a.Identity, a.Username, a.Password); err != nil {
		return mech, nil, err
	}
	ir = []byte(a.Identity + "\x00" + a.Username + "\x00" + a.Password)
	return mech, ir, nil
}

func (a *plainClient) Next(challenge []byte) (response []byte, err error) {
	return nil, errors.New("sasl: PLAIN sent its whole response as the initial response, unexpected server challenge")
}

// checkNoNUL rejects credentials containing a NUL byte: PLAIN's wire
// format uses NUL as the field separator, so a NUL in any field would let
// its value smuggle extra fields past the server's parser.
func checkNoNUL(fields ...string) error {
	for _, f := range fields {
		for i := 0; i < len(f); i++ {
			if f[i] == 0 {
				return errors.New("sasl: PLAIN credential contains a NUL byte")
			}
		}
	}
	return nil
}

// NewPlainClient implements the PLAIN mechanism (RFC 4616). Identity may
// be left blank to authorize as the authenticating user itself.
func NewPlainClient(username, password, identity string) Client {
	return &plainClient{username, password, identity}
}
