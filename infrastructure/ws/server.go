// Package ws is the realtime boundary: it upgrades authenticated HTTP
// requests to websocket connections, bridges frames to the message
// router, and serves the one-shot history fetch.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"chatwire/contract"
	"chatwire/domain"
	"chatwire/domain/event"
	cherr "chatwire/errors"
	"chatwire/services"
	"chatwire/sink"
	"chatwire/transport"
	"chatwire/wire"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	SendBuffer      int
	ShutdownTimeout time.Duration
	// OriginPatterns lists the browser origins allowed to open a
	// websocket, in addition to the server's own host. Requests without
	// an Origin header (native clients, tooling) always pass.
	OriginPatterns []string
}

type Server struct {
	log      *slog.Logger
	cfg      Config
	verifier contract.ITokenVerifier
	presence contract.IPresence
	chat     services.IChatService

	http *http.Server
	ctx  context.Context
}

func NewServer(ctx context.Context, log *slog.Logger, cfg Config,
	verifier contract.ITokenVerifier, presence contract.IPresence, chat services.IChatService) *Server {
	s := &Server{
		log:      log,
		cfg:      cfg,
		verifier: verifier,
		presence: presence,
		chat:     chat,
		ctx:      ctx,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleSocket)
	mux.HandleFunc("/history", s.handleHistory)

	s.http = &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	return s
}

// Run serves until the context ends, then shuts down gracefully.
func (s *Server) Run() error {
	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Realtime server listening", "addr", s.cfg.Addr)
		if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-s.ctx.Done():
		return s.Shutdown()
	case err := <-errChan:
		return err
	}
}

func (s *Server) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// handleSocket authenticates the handshake, upgrades, and registers the
// connection. A bad token is rejected before any presence mutation.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := s.verifier.Verify(bearerToken(r))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	connLog := s.log.With("user_id", userID)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.OriginPatterns,
	})
	if err != nil {
		connLog.Error("Failed to accept websocket connection", "error", err)
		return
	}

	// The sink wraps the connection, and the frame handler needs the
	// sink; neither pump runs before Run, so the late assignment is safe.
	var connSink sink.ConnectionSink
	conn := transport.NewConnection(s.ctx, wsConn, transport.Config{
		ReadTimeout: s.cfg.ReadTimeout,
		SendBuffer:  s.cfg.SendBuffer,
	}, func(ctx context.Context, connID uuid.UUID, frame []byte) {
		s.handleFrame(ctx, userID, connSink, frame)
	}, func(connID uuid.UUID, err error) {
		// The transport fires this exactly once however the connection
		// ended, so unregistration cannot double-fire.
		s.presence.Unregister(userID, connID)
	}, connLog)
	connSink = sink.NewConnectionSink(conn, connLog)

	s.presence.Register(userID, conn.ID(), connSink)

	// The fresh connection gets the current roster immediately rather
	// than waiting for the next presence transition.
	_ = connSink.Consume(s.ctx, event.RosterSnapshot{IDs: s.presence.OnlineIDs()})

	connLog.Info("Client connected", "conn_id", conn.ID().String())
	conn.Run()
	<-conn.Done()
}

// handleFrame processes one inbound frame from one connection. Frames of
// a single connection arrive here strictly in send order, so the
// validate/persist/fan-out pipeline below preserves per-sender ordering.
func (s *Server) handleFrame(ctx context.Context, userID string, connSink sink.ConnectionSink, frame []byte) {
	env, err := wire.Decode(frame)
	if err != nil {
		s.notifyFailure(ctx, connSink, err)
		return
	}

	switch env.Event {
	case wire.EventSendMessage:
		payload, err := wire.ParseSendMessage(env)
		if err != nil {
			s.notifyFailure(ctx, connSink, err)
			return
		}

		msg, err := s.chat.Send(ctx, domain.SendMessageCommand{
			SenderID:    userID,
			RecipientID: payload.RecipientID,
			Text:        payload.Text,
			Image:       payload.Image,
		})
		if err != nil {
			s.notifyFailure(ctx, connSink, err)
			return
		}

		// The ack goes to the sending connection only, so that client
		// can reconcile its optimistic echo with the canonical id.
		_ = connSink.Consume(ctx, event.MessageStored{Message: msg})
	default:
		s.notifyFailure(ctx, connSink, cherr.ErrUnknownEvent)
	}
}

// notifyFailure converts an internal error into the transient failure
// notice shown on the sending client. Errors never cross the boundary
// as faults.
func (s *Server) notifyFailure(ctx context.Context, connSink sink.ConnectionSink, err error) {
	_ = connSink.Consume(ctx, event.SendFailed{
		Code:   cherr.WireCode(err),
		Reason: err.Error(),
	})
}

// handleHistory is the one-shot historical fetch for a conversation:
// GET /history?peer=<id> with a bearer token.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, err := s.verifier.Verify(bearerToken(r))
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	peerID := r.URL.Query().Get("peer")
	if peerID == "" {
		http.Error(w, "Missing peer", http.StatusBadRequest)
		return
	}

	messages, err := s.chat.History(userID, peerID)
	if err != nil {
		s.log.Error("History fetch failed", "user_id", userID, "peer", peerID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(lo.Map(messages, func(m domain.Message, _ int) wire.Message {
		return wire.FromDomain(m)
	}))
}

// bearerToken extracts the identity token from the Authorization header
// or, for browser websocket clients that cannot set headers, the token
// query parameter.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
