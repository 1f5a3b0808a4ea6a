package voicews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haivivi/voicegate/pkg/audio/pcm"
	"github.com/haivivi/voicegate/pkg/isolation"
	"github.com/haivivi/voicegate/pkg/session"
	"github.com/haivivi/voicegate/pkg/voiceprint"
)

// Message types.
const (
	TypeReady    = "ready"
	TypeEnroll   = "enroll"
	TypeEnrolled = "enrolled"
	TypeVerify   = "verify"
	TypeError    = "error"
)

// Command is a client text frame.
type Command struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// Reply is a server text frame other than session events.
type Reply struct {
	Type    string              `json:"type"`
	Session string              `json:"session,omitempty"`
	Profile *voiceprint.Profile `json:"profile,omitempty"`
	Error   string              `json:"error,omitempty"`
}

func errBadParam(name, value string) error {
	return fmt.Errorf("voicews: invalid %s %q", name, value)
}

// conn is one websocket session.
type conn struct {
	srv    *Server
	ws     *websocket.Conn
	format pcm.Format
	log    *slog.Logger

	wmu sync.Mutex
}

func newConn(srv *Server, ws *websocket.Conn, format pcm.Format) *conn {
	return &conn{
		srv:    srv,
		ws:     ws,
		format: format,
		log:    srv.log.With("remote", ws.RemoteAddr().String()),
	}
}

func (c *conn) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.ws.Close()

	sess, proc, out, in, err := c.start(ctx)
	if err != nil {
		c.log.Error("session setup failed", "error", err)
		c.writeJSON(Reply{Type: TypeError, Error: err.Error()})
		return
	}
	log := c.log.With("session", sess.ID())
	log.Info("session opened", "format", c.format)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.pumpAudio(out)
	}()
	go func() {
		defer wg.Done()
		err := sess.Run(ctx, c.srv.tick, func(ev session.Event) {
			if err := c.writeJSON(ev); err != nil {
				cancel()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("session loop stopped", "error", err)
		}
	}()

	c.writeJSON(Reply{Type: TypeReady, Session: sess.ID()})
	c.readLoop(ctx, sess, proc, in)

	cancel()
	in.Close()
	proc.Cleanup()
	wg.Wait()
	log.Info("session closed")
}

func (c *conn) start(ctx context.Context) (*session.Session, *isolation.Processor, pcm.Stream, *pcm.Queue, error) {
	// Per-connection options override server-wide ones.
	opts := append(slices.Clone(c.srv.procOpts),
		isolation.WithLogger(c.log),
		isolation.WithStore(c.srv.store),
	)
	proc, err := isolation.New(opts...)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	in := pcm.NewQueue(c.format, 2*c.format.SampleRate*c.format.Channels)
	out := proc.Initialize(ctx, in)
	sopts := append(slices.Clone(c.srv.sessOpts),
		session.WithID(uuid.NewString()),
		session.WithLogger(c.log),
	)
	return session.New(proc, sopts...), proc, out, in, nil
}

// pumpAudio sends processed audio back in 20 ms frames.
func (c *conn) pumpAudio(out pcm.Stream) {
	samples := make([]float32, out.Format().SamplesInDuration(20*time.Millisecond)*out.Format().Channels)
	var frame []byte
	for {
		n, err := out.Read(samples)
		if n > 0 {
			frame = pcm.EncodeL16(frame[:0], samples[:n])
			if werr := c.write(websocket.BinaryMessage, frame); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *conn) readLoop(ctx context.Context, sess *session.Session, proc *isolation.Processor, in *pcm.Queue) {
	c.ws.SetReadLimit(readLimit)
	var buf []float32
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("websocket read ended", "error", err)
			}
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			buf = pcm.DecodeL16(buf[:0], data)
			if err := in.Push(buf); err != nil {
				return
			}
		case websocket.TextMessage:
			c.handleCommand(ctx, sess, proc, data)
		}
	}
}

func (c *conn) handleCommand(ctx context.Context, sess *session.Session, proc *isolation.Processor, data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.writeJSON(Reply{Type: TypeError, Error: fmt.Sprintf("invalid command: %v", err)})
		return
	}
	switch cmd.Type {
	case TypeEnroll:
		id := cmd.ID
		if id == "" {
			id = uuid.NewString()
		}
		name := cmd.Name
		if name == "" {
			name = id
		}
		p, err := proc.CreateVoiceProfile(ctx, id, name)
		if err != nil {
			c.writeJSON(Reply{Type: TypeError, Error: err.Error()})
			return
		}
		c.writeJSON(Reply{Type: TypeEnrolled, Profile: p})
	case TypeVerify:
		on := cmd.Enabled == nil || *cmd.Enabled
		sess.SetVerify(on)
		c.log.Debug("verification toggled", "enabled", on)
	default:
		c.writeJSON(Reply{Type: TypeError, Error: fmt.Sprintf("unknown command %q", cmd.Type)})
	}
}

func (c *conn) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

func (c *conn) write(mt int, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(mt, data)
}
