package janitor

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"io"
	"math/big"
	"time"

	quic "github.com/quic-go/quic-go"

	"github.com/cuddl-go/cuddl/internal/cuddlerr"
	"github.com/cuddl-go/cuddl/internal/klog"
	"github.com/cuddl-go/cuddl/internal/manager"
)

// protoName is this channel's ALPN identifier, distinct from the control
// channel's so the two never cross-connect.
const protoName = "cuddl-janitor/1"

// Server is the janitor channel of spec.md §4.6: each accepted connection
// registers exactly one pid and is watched until it closes, at which point
// every ResourceRef that pid still owns is dropped.
type Server struct {
	registry *manager.Registry
	listener *quic.Listener
	errC     chan error
}

// NewServer builds a janitor Server bound to reg.
func NewServer(reg *manager.Registry) *Server {
	return &Server{registry: reg, errC: make(chan error, 1)}
}

// Start begins serving on addr and returns the bound address.
func (s *Server) Start(addr string) (string, error) {
	tlsConf, err := selfSignedServerTLS(protoName)
	if err != nil {
		return "", err
	}
	ln, err := quic.ListenAddr(addr, tlsConf, &quic.Config{MaxIdleTimeout: 2 * time.Minute})
	if err != nil {
		return "", cuddlerr.Wrap("janitor.listen", err)
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

// serveConn implements spec.md §4.6: register the pid, then block until the
// connection closes (by clean exit, crash, or kill — all look the same
// here), and run the cleanup walk.
func (s *Server) serveConn(conn *quic.Conn) {
	pid, err := s.readRegistration(conn)
	if err != nil {
		_ = conn.CloseWithError(0, "")
		return
	}

	<-conn.Context().Done()

	memDropped, eventDropped := s.registry.CleanupPID(pid)
	if memDropped > 0 || eventDropped > 0 {
		klog.Info("janitor: pid %d disconnected, dropped %d memregion ref(s), %d eventsrc ref(s)",
			pid, memDropped, eventDropped)
	}
}

func (s *Server) readRegistration(conn *quic.Conn) (int32, error) {
	stream, err := conn.AcceptStream(context.Background())
	if err != nil {
		return 0, cuddlerr.Wrap("janitor.accept_stream", err)
	}
	defer stream.Close()

	raw, err := readFrame(stream)
	if err != nil {
		return 0, err
	}
	pid, err := decodeRegister(raw)
	if err != nil {
		return 0, cuddlerr.New("janitor.register_pid", cuddlerr.TransportError, err.Error())
	}
	return pid, nil
}

// Stop closes the listener.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// Errors returns the accept loop's terminal error channel.
func (s *Server) Errors() <-chan error { return s.errC }

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, cuddlerr.Wrap("janitor.read", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, cuddlerr.Wrap("janitor.read", err)
	}
	return buf, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return cuddlerr.Wrap("janitor.write", err)
	}
	if _, err := w.Write(payload); err != nil {
		return cuddlerr.Wrap("janitor.write", err)
	}
	return nil
}

// selfSignedServerTLS mirrors internal/controlproto's loopback-only
// certificate generation; duplicated rather than shared since the two
// channels are independent protocols with independent ALPN identifiers.
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
