// Package ws bridges a game-server host plugin to the stacking
// engine over a websocket. The host streams STATE and EVENT
// messages; engine-issued world actions travel back as CMD messages,
// each acknowledged by a RESULT before the host sends anything else.
package ws

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mobstack.dev/internal/protocol"
	"mobstack.dev/internal/sim/stack"
	"mobstack.dev/internal/sim/tuning"
	"mobstack.dev/internal/sim/world"
)

// EngineFactory builds an engine for one host session. The returned
// engine is closed when the session ends.
type EngineFactory func(host world.Host, caps world.Capabilities) *stack.Engine

type Server struct {
	newEngine EngineFactory
	cfg       *tuning.Watcher
	log       *log.Logger

	upgrader websocket.Upgrader

	mu   sync.Mutex
	busy bool
}

func NewServer(factory EngineFactory, cfg *tuning.Watcher, logger *log.Logger) *Server {
	return &Server{
		newEngine: factory,
		cfg:       cfg,
		log:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// One authoritative host at a time.
		s.mu.Lock()
		if s.busy {
			s.mu.Unlock()
			s.log.Printf("rejecting second host connection from %s", r.RemoteAddr)
			return
		}
		s.busy = true
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.busy = false
			s.mu.Unlock()
		}()

		sess, hello := s.handshake(conn)
		if sess == nil {
			return
		}
		s.log.Printf("host %q connected (hurt_events=%v interact_events=%v)",
			hello.HostName, hello.Capabilities.HurtEvents, hello.Capabilities.InteractEvents)

		eng := s.newEngine(sess, world.Capabilities{
			HurtEvents:     hello.Capabilities.HurtEvents,
			InteractEvents: hello.Capabilities.InteractEvents,
		})
		sess.engine = eng

		sess.run()
		eng.Close()
		s.log.Printf("host %q disconnected", hello.HostName)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (*session, *protocol.HelloMsg) {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, nil
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		return nil, nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, nil
	}
	if hello.ProtocolVersion != protocol.Version {
		s.log.Printf("host protocol mismatch: got %q want %q", hello.ProtocolVersion, protocol.Version)
		return nil, nil
	}

	sess := newSession(conn, s.log)
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       newSessionID(),
		LeaderTag:       stack.LeaderTag,
		ScanPeriodTicks: s.cfg.Current().ScanPeriodTicks,
	}
	if err := conn.WriteJSON(welcome); err != nil {
		return nil, nil
	}
	return sess, &hello
}

func newSessionID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return "S" + hex.EncodeToString(b[:])
}
