package relay

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/zsiec/ghostlink/internal/certs"
)

// ALPN is the application protocol negotiated on relay connections.
const ALPN = "ghostlink/1"

// ServerConfig configures the QUIC relay server.
type ServerConfig struct {
	Addr string
	Cert *certs.CertInfo
}

// Server serves a Relay's stream over QUIC. Each accepted connection gets a
// single server-opened unidirectional stream carrying the container header
// followed by frame blocks.
type Server struct {
	log   *slog.Logger
	cfg   ServerConfig
	relay *Relay
}

// NewServer builds a Server delivering frames from relay.
func NewServer(cfg ServerConfig, relay *Relay) (*Server, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("relay: listen address required")
	}
	if cfg.Cert == nil {
		return nil, fmt.Errorf("relay: TLS certificate required")
	}
	return &Server{
		log:   slog.With("component", "relay-server"),
		cfg:   cfg,
		relay: relay,
	}, nil
}

// Serve listens for viewer connections and blocks until the context is
// cancelled or a fatal listener error occurs.
func (s *Server) Serve(ctx context.Context) error {
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{s.cfg.Cert.TLSCert},
		NextProtos:   []string{ALPN},
	}
	ln, err := quic.ListenAddr(s.cfg.Addr, tlsConfig, &quic.Config{
		MaxIdleTimeout: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("relay: listen %s: %w", s.cfg.Addr, err)
	}

	s.log.Info("relay listening", "addr", s.cfg.Addr, "fingerprint", s.cfg.Cert.FingerprintBase64())

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("relay: accept: %w", err)
		}
		go s.serveViewer(ctx, conn)
	}
}

// Application error codes sent on connection close.
const (
	errCodeDone     quic.ApplicationErrorCode = 0
	errCodeInternal quic.ApplicationErrorCode = 1
)

// serveViewer delivers the header and then live frames to one connection.
func (s *Server) serveViewer(ctx context.Context, conn quic.Connection) {
	viewer := s.relay.AddViewer()
	defer s.relay.RemoveViewer(viewer.ID())

	log := s.log.With("session", viewer.ID(), "remote", conn.RemoteAddr().String())

	stream, err := conn.OpenUniStreamSync(ctx)
	if err != nil {
		log.Warn("open stream failed", "error", err)
		conn.CloseWithError(errCodeInternal, "open stream")
		return
	}

	if header := s.relay.Header(); header != nil {
		if _, err := stream.Write(header); err != nil {
			log.Warn("header write failed", "error", err)
			conn.CloseWithError(errCodeInternal, "write header")
			return
		}
	}

	for {
		select {
		case frame, ok := <-viewer.Frames():
			if !ok {
				conn.CloseWithError(errCodeDone, "stream ended")
				return
			}
			if _, err := stream.Write(frame); err != nil {
				stats := viewer.Stats()
				log.Info("viewer disconnected", "sent", stats.Sent, "dropped", stats.Dropped)
				conn.CloseWithError(errCodeInternal, "write frame")
				return
			}
		case <-ctx.Done():
			conn.CloseWithError(errCodeDone, "server shutting down")
			return
		}
	}
}
