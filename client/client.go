// Package client implements spec.md §4.7: the user-space device-mediation
// library. It translates library calls into internal/controlproto commands,
// performs the platform memory-map and event-wait primitives directly
// (rather than through the manager), and presents a uniform API across the
// real-time and non-real-time variants.
package client

import (
	"context"
	"os"

	"github.com/cuddl-go/cuddl/internal/controlproto"
	"github.com/cuddl-go/cuddl/internal/janitor"
	"github.com/cuddl-go/cuddl/internal/version"
)

// Client is a library instance: one control-channel connection plus one
// janitor-channel connection, opened together at initialization (spec.md
// §4.6: "opened by each client process on library initialization").
type Client struct {
	ctl *controlproto.Client
	jan *janitor.Client
	pid int32
}

// Options configures Open.
type Options struct {
	// ControlAddr is the control channel's listen address (spec.md §6's
	// "/dev/cuddl" realized as a QUIC endpoint).
	ControlAddr string
	// JanitorAddr is the janitor channel's listen address ("/dev/cuddl_janitor").
	JanitorAddr string
}

// Open dials both channels and registers this process's pid with the
// janitor channel, the sequence spec.md §4.6 requires of every client at
// startup.
func Open(ctx context.Context, opts Options) (*Client, error) {
	ctl, err := controlproto.Dial(ctx, opts.ControlAddr)
	if err != nil {
		return nil, err
	}
	pid := int32(os.Getpid())
	jan, err := janitor.Register(ctx, opts.JanitorAddr, pid)
	if err != nil {
		_ = ctl.Close()
		return nil, err
	}
	return &Client{ctl: ctl, jan: jan, pid: pid}, nil
}

// Close closes both channels. Closing the janitor channel is what the
// manager reacts to by dropping every ResourceRef this process still owns
// (spec.md §4.6); calling Close here is the clean-exit path, but the same
// cleanup happens if the process dies without ever calling it.
func (c *Client) Close() error {
	jerr := c.jan.Close()
	cerr := c.ctl.Close()
	if jerr != nil {
		return jerr
	}
	return cerr
}

// call is a thin wrapper over the control-channel client. It does not touch
// req: every caller sets req's VersionCode to currentVersion itself, since
// every control-channel command carries one (spec.md §4.5).
func (c *Client) call(ctx context.Context, cmd controlproto.Command, req, out any) error {
	return c.ctl.Call(ctx, cmd, req, out)
}

var currentVersion = version.Current
