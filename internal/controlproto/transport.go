package controlproto

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"math/big"
	"time"

	quic "github.com/quic-go/quic-go"

	"github.com/cuddl-go/cuddl/internal/cuddlerr"
	"github.com/cuddl-go/cuddl/internal/klog"
)

// protoName is the ALPN identifier for the control channel's QUIC
// connections, distinct from the janitor channel's so a misdirected dial
// fails the handshake instead of silently misrouting commands.
const protoName = "cuddl-control/1"

// Server listens for control-channel connections the way
// internal/runtime/netstack.HTTP3Server listens for HTTP/3 traffic, but
// speaks raw length-prefixed JSON frames over QUIC streams instead of HTTP:
// one connection per client process, one stream per pipelined command
// (spec.md §5: "within one process, commands complete in the order
// issued").
type Server struct {
	handler  *Handler
	listener *quic.Listener
	errC     chan error
}

// NewServer builds a Server dispatching to handler.
func NewServer(handler *Handler) *Server {
	return &Server{handler: handler, errC: make(chan error, 1)}
}

// Start begins serving on addr (a "host:port" UDP address) and returns the
// bound address, the way HTTP3Server.Start does for an ephemeral port.
func (s *Server) Start(addr string) (string, error) {
	tlsConf, err := selfSignedServerTLS(protoName)
	if err != nil {
		return "", err
	}
	ln, err := quic.ListenAddr(addr, tlsConf, &quic.Config{MaxIdleTimeout: 2 * time.Minute})
	if err != nil {
		return "", cuddlerr.Wrap("control.listen", err)
	}
	s.listener = ln
	go s.acceptLoop()
	return ln.Addr().String(), nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept(context.Background())
		if err != nil {
			select {
			case s.errC <- err:
			default:
			}
			return
		}
		go s.serveConn(conn)
	}
}

// serveConn accepts streams from one client connection until it closes.
// Connection close carries no meaning for the control channel itself (the
// janitor channel is what the cleanup walk reacts to); this loop just stops.
func (s *Server) serveConn(conn *quic.Conn) {
	for {
		stream, err := conn.AcceptStream(context.Background())
		if err != nil {
			return
		}
		go s.serveStream(stream)
	}
}

func (s *Server) serveStream(stream *quic.Stream) {
	defer stream.Close()

	raw, err := readMessage(stream)
	if err != nil {
		return
	}
	var req requestFrame
	if err := json.Unmarshal(raw, &req); err != nil {
		writeErrorResponse(stream, errBadPayload)
		return
	}

	respPayload, derr := s.handler.Dispatch(req.Command, req.Payload)
	if derr != nil {
		klog.Debugf("controlproto: %s failed: %v", req.Command, derr)
		writeErrorResponse(stream, derr)
		return
	}

	frame, err := json.Marshal(responseFrame{Payload: respPayload})
	if err != nil {
		return
	}
	_ = writeMessage(stream, frame)
}

func writeErrorResponse(stream *quic.Stream, err error) {
	frame, merr := json.Marshal(responseFrame{Error: toWireError(err)})
	if merr != nil {
		return
	}
	_ = writeMessage(stream, frame)
}

// Stop closes the listener; in-flight streams finish or time out on their
// own.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// Errors returns a channel that receives the accept loop's terminal error,
// if any, mirroring HTTP3Server.Error.
func (s *Server) Errors() <-chan error { return s.errC }

// Client is a thin wrapper around one QUIC connection to a control-channel
// Server: callers open a fresh stream per command, matching "within one
// process, commands complete in the order issued" without serializing
// unrelated commands behind each other on the wire.
type Client struct {
	conn *quic.Conn
}

// Dial opens a control-channel connection to addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	tlsConf := &tls.Config{InsecureSkipVerify: true, NextProtos: []string{protoName}}
	conn, err := quic.DialAddr(ctx, addr, tlsConf, nil)
	if err != nil {
		return nil, cuddlerr.Wrap("control.dial", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.CloseWithError(0, "")
}

// Call opens a stream, sends cmd/req, and decodes the response into out.
func (c *Client) Call(ctx context.Context, cmd Command, req, out any) error {
	stream, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return cuddlerr.Wrap("control.open_stream", err)
	}
	defer stream.Close()
	return sendRequest(stream, stream, cmd, req, out)
}

// selfSignedServerTLS builds a loopback-only TLS config backed by a freshly
// generated self-signed certificate: the control channel never leaves the
// local host (it stands in for an ioctl, not a network RPC), so there is no
// CA to present a certificate signed by.
func selfSignedServerTLS(alpn string) (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, cuddlerr.Wrap("tls.generate_key", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"cuddl-go"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * 365 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, cuddlerr.Wrap("tls.create_cert", err)
	}
	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{alpn},
		MinVersion:   tls.VersionTLS13,
	}, nil
}
