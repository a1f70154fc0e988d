// Package httpapi is the thin web-facing shell over the edge core:
// decode, dispatch, encode. All decisions happen in the services.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tainadesingsil-coder/Interaopen/internal/edge/bridge"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/crypto"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/service"
)

// maxRequestBody caps inbound bodies. Encrypted envelopes for this system
// are small; 64 KiB is generous.
const maxRequestBody = 64 << 10

type Dependencies struct {
	Logger *zap.Logger
	Addr   string
	Cipher *crypto.Cipher
	Router *service.EventRouter
}

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	cipher     *crypto.Cipher
	router     *service.EventRouter
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger: d.Logger,
		mux:    mux,
		cipher: d.Cipher,
		router: d.Router,
	}

	mux.HandleFunc("POST /v1/intercom/decision", s.handleIntercomDecision)
	mux.HandleFunc("POST /v1/telemetry", s.handleTelemetry)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// decodeBody funnels the request body through the same packet classifier
// as wearable notifications, so envelope handling and schema validation
// are identical on both transports.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request) (bridge.Packet, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_body", "could not read request body")
		return bridge.Packet{}, false
	}
	return bridge.DecodePacket(body, s.cipher), true
}

func (s *Server) handleIntercomDecision(w http.ResponseWriter, r *http.Request) {
	pkt, ok := s.decodeBody(w, r)
	if !ok {
		return
	}

	switch pkt.Kind {
	case bridge.PacketIntercomDecision:
		if !pkt.Encrypted {
			writeError(w, http.StatusBadRequest, "envelope_required",
				"intercom decisions must arrive as an encrypted envelope")
			return
		}
		decision := s.router.HandleIntercomDecision(r.Context(), *pkt.Intercom)
		writeJSON(w, http.StatusOK, decision)

	case bridge.PacketAuthError:
		// Failed decryption only: the sender could not prove the key.
		s.router.HandlePacket(r.Context(), pkt)
		writeError(w, http.StatusUnauthorized, "authentication_failed", "invalid encrypted payload")

	case bridge.PacketDecodeError:
		// Authenticated (or plaintext) but schema-invalid.
		s.router.HandlePacket(r.Context(), pkt)
		writeError(w, http.StatusUnprocessableEntity, "invalid_payload", pkt.Err)

	default:
		s.router.HandlePacket(r.Context(), pkt)
		writeError(w, http.StatusBadRequest, "invalid_request", "expected an intercom decision envelope")
	}
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	pkt, ok := s.decodeBody(w, r)
	if !ok {
		return
	}

	switch pkt.Kind {
	case bridge.PacketTelemetry:
		alert := s.router.HandleTelemetry(r.Context(), *pkt.Telemetry)
		writeJSON(w, http.StatusAccepted, map[string]any{
			"accepted":     true,
			"alert_raised": alert != nil,
		})

	case bridge.PacketAuthError:
		s.router.HandlePacket(r.Context(), pkt)
		writeError(w, http.StatusUnauthorized, "authentication_failed", "invalid encrypted payload")

	case bridge.PacketDecodeError:
		s.router.HandlePacket(r.Context(), pkt)
		writeError(w, http.StatusUnprocessableEntity, "invalid_payload", pkt.Err)

	default:
		s.router.HandlePacket(r.Context(), pkt)
		writeError(w, http.StatusBadRequest, "invalid_request", "expected a telemetry payload")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error":   code,
		"message": message,
	})
}
