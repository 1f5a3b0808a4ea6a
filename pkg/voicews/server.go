// Package voicews serves the voice isolation pipeline over websocket.
//
// # Protocol
//
// A client connects to /ws, optionally with ?rate=<Hz> (default 16000) and
// ?channels=<n> (default 1), and streams capture audio as binary frames of
// little-endian int16 PCM. The server answers with:
//
//   - binary frames: the processed audio, int16 mono at 16 kHz
//   - {"type":"ready","session":"..."} once the pipeline is up
//   - {"type":"activity",...} session events at the tick interval
//   - {"type":"enrolled","profile":{...}} after an enroll command
//   - {"type":"error","error":"..."} when a command fails
//
// Text frames from the client are JSON commands:
//
//	{"type":"enroll","id":"u1","name":"Alice"}
//	{"type":"verify","enabled":true}
//
// Each connection owns its processor; the profile store is shared.
package voicews

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/voicegate/pkg/audio/pcm"
	"github.com/haivivi/voicegate/pkg/isolation"
	"github.com/haivivi/voicegate/pkg/session"
	"github.com/haivivi/voicegate/pkg/voiceprint"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTickInterval sets how often session events are sent (default 100ms).
func WithTickInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithProcessorOptions adds options to every connection's processor. The
// logger and store are always the connection's own.
func WithProcessorOptions(opts ...isolation.Option) Option {
	return func(s *Server) {
		s.procOpts = append(s.procOpts, opts...)
	}
}

// WithSessionOptions adds options to every connection's session. The id and
// logger are always the connection's own.
func WithSessionOptions(opts ...session.Option) Option {
	return func(s *Server) {
		s.sessOpts = append(s.sessOpts, opts...)
	}
}

// readLimit bounds a single client frame.
const readLimit = 1 << 20

// writeTimeout bounds a single server frame.
const writeTimeout = 10 * time.Second

// Server accepts websocket sessions.
type Server struct {
	store    *voiceprint.Store
	log      *slog.Logger
	tick     time.Duration
	procOpts []isolation.Option
	sessOpts []session.Option
	upgrader websocket.Upgrader
	active   atomic.Int64
}

// NewServer creates a Server sharing store across connections.
func NewServer(store *voiceprint.Store, opts ...Option) *Server {
	s := &Server{
		store: store,
		log:   slog.Default(),
		tick:  100 * time.Millisecond,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler: /ws for sessions, /healthz for probes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok\n"))
	})
	return mux
}

// Active returns the number of open sessions.
func (s *Server) Active() int {
	return int(s.active.Load())
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("websocket server listening", "addr", addr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	format, err := queryFormat(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	s.active.Add(1)
	defer s.active.Add(-1)

	c := newConn(s, ws, format)
	c.serve(r.Context())
}

func queryFormat(r *http.Request) (pcm.Format, error) {
	f := isolation.Format
	q := r.URL.Query()
	if v := q.Get("rate"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return f, errBadParam("rate", v)
		}
		f.SampleRate = rate
	}
	if v := q.Get("channels"); v != "" {
		ch, err := strconv.Atoi(v)
		if err != nil {
			return f, errBadParam("channels", v)
		}
		f.Channels = ch
	}
	if f.SampleRate < 8000 || f.SampleRate > 192000 || f.Channels < 1 || f.Channels > 8 {
		return f, errBadParam("format", f.String())
	}
	return f, nil
}
