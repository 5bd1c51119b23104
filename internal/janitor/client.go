package janitor

import (
	"context"
	"crypto/tls"

	quic "github.com/quic-go/quic-go"

	"github.com/cuddl-go/cuddl/internal/cuddlerr"
)

// Client holds the janitor-channel connection a library instance keeps open
// for its own process lifetime (spec.md §4.6: "opened by each client
// process on library initialization"). Closing it is what triggers the
// manager's cleanup walk for this process's pid.
type Client struct {
	conn *quic.Conn
}

// Register dials addr and immediately sends janitor.register_pid(pid), the
// way spec.md §4.6 requires: "the client issues janitor.register_pid(pid)
// immediately after open".
func Register(ctx context.Context, addr string, pid int32) (*Client, error) {
	tlsConf := &tls.Config{InsecureSkipVerify: true, NextProtos: []string{protoName}}
	conn, err := quic.DialAddr(ctx, addr, tlsConf, nil)
	if err != nil {
		return nil, cuddlerr.Wrap("janitor.dial", err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "")
		return nil, cuddlerr.Wrap("janitor.open_stream", err)
	}
	payload, err := encodeRegister(pid)
	if err != nil {
		_ = conn.CloseWithError(0, "")
		return nil, cuddlerr.Wrap("janitor.encode", err)
	}
	if err := writeFrame(stream, payload); err != nil {
		_ = conn.CloseWithError(0, "")
		return nil, err
	}
	_ = stream.Close()

	return &Client{conn: conn}, nil
}

// Close disconnects from the janitor channel. The server observes the
// connection close and runs the cleanup walk for this client's pid —
// whether Close is called explicitly or the process simply dies.
func (c *Client) Close() error {
	return c.conn.CloseWithError(0, "")
}
