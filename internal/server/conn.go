package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/okriva/opgate/internal/observability"
	"github.com/okriva/opgate/internal/op"
	"github.com/okriva/opgate/internal/wire"
)

// handleConn drives one connection through its linear state machine:
// handshake, bounded read, decode, route, bounded encode, write, close.
// Handshake failure closes without a response; every failure after a
// successful handshake still gets a best-effort Ko response.
func (s *Server) handleConn(ctx context.Context, id uint64, conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	observability.RecordConnectionAccepted()

	if tlsConn, ok := conn.(*tls.Conn); ok {
		_ = tlsConn.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			observability.RecordHandshakeFailure()
			log.Warn().
				Uint64("conn_id", id).
				Str("remote", remote).
				Err(err).
				Msg("tls handshake failed")
			return
		}
		_ = tlsConn.SetDeadline(time.Time{})
	}

	result, operation := s.serveRequest(ctx, conn, remote)

	payload, err := wire.EncodeResult(result.Success, result.Content)
	if err != nil {
		result = op.Ko(err.Error())
		if payload, err = wire.EncodeResult(result.Success, result.Content); err != nil {
			log.Error().Uint64("conn_id", id).Err(err).Msg("encode result failed")
			return
		}
	}
	if wire.CheckResponseSize(payload, s.cfg.limits()) != nil {
		result = op.Ko(fmt.Sprintf("Max response length (%d) exceeded.", s.cfg.MaxResponseBytes))
		if payload, err = wire.EncodeResult(result.Success, result.Content); err != nil {
			log.Error().Uint64("conn_id", id).Err(err).Msg("encode result failed")
			return
		}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if _, err := conn.Write(payload); err != nil {
		log.Warn().
			Uint64("conn_id", id).
			Str("remote", remote).
			Str("operation", operation).
			Err(err).
			Msg("write response failed")
		return
	}
	observability.RecordResponse(operation, result.Success)
}

// serveRequest covers the reading, decoding, and routing states. Any panic
// in this span is recovered and converted to a Ko result so a response is
// still written.
func (s *Server) serveRequest(ctx context.Context, conn net.Conn, remote string) (result op.Result, operation string) {
	defer func() {
		if rec := recover(); rec != nil {
			result = op.Ko(fmt.Sprint(rec))
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	raw, err := wire.ReadRequest(bufio.NewReader(conn), s.cfg.limits())
	if err != nil {
		if errors.Is(err, wire.ErrRequestTooLarge) {
			return op.Ko(fmt.Sprintf("Max request length (%d) exceeded.", s.cfg.MaxRequestBytes)), ""
		}
		return op.Ko(err.Error()), ""
	}

	operation, payload := wire.SplitRequest(raw)
	req := &op.Request{Name: operation, Origin: remote, Content: payload}

	start := time.Now()
	result = s.router.Dispatch(ctx, operation, req)
	observability.RecordDispatch(operation, time.Since(start))
	return result, operation
}
