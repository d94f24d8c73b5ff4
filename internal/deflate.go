package internal

import (
	"compress/flate"
	"io"
	"net"
)

// deflateConn wraps a net.Conn in a DEFLATE stream (RFC 4978) once
// router.Conn.UpgradeDeflate has run. Its Flush method is what
// router.Conn's flushStream reaches for after every command: the
// bufio.Writer sitting in front of this conn only calls Write on it, so
// without this hook a compressed command could sit buffered inside
// flate.Writer indefinitely instead of reaching the socket.
type deflateConn struct {
	net.Conn

	r io.ReadCloser
	w *flate.Writer
}

func (c *deflateConn) Read(b []byte) (int, error) {
	return c.r.Read(b)
}

func (c *deflateConn) Write(b []byte) (int, error) {
	return c.w.Write(b)
}

// underlyingFlusher is satisfied by a net.Conn that itself buffers writes
// below the DEFLATE layer (none of this engine's transports currently
// do, but TLS or a future transport might).
type underlyingFlusher interface {
	Flush() error
}

func (c *deflateConn) Flush() error {
	if err := c.w.Flush(); err != nil {
		return err
	}
	if f, ok := c.Conn.(underlyingFlusher); ok {
		return f.Flush()
	}
	return nil
}

func (c *deflateConn) Close() error {
	if err := c.r.Close(); err != nil {
		return err
	}
	if err := c.w.Close(); err != nil {
		return err
	}
	return c.Conn.Close()
}

// CreateDeflateConn builds the DEFLATE-wrapped connection that
// router.Conn.UpgradeDeflate installs in place of the plain socket.
func CreateDeflateConn(c net.Conn, level int) (net.Conn, error) {
	r := flate.NewReader(c)
	w, err := flate.NewWriter(c, level)
	if err != nil {
		return nil, err
	}

	return &deflateConn{
		Conn: c,
		r:    r,
		w:    w,
	}, nil
}
