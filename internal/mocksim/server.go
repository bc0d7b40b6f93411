// Package mocksim implements a stand-in simulation backend for local
// development and integration tests. It speaks the same realtime protocol as
// the production simulator: commands are acknowledged with "<type>_updated"
// replies, status polls echo their own type, and a busy flag accompanies
// every status frame.
package mocksim

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mimiclab/simlink/internal/common/cnst"
	"github.com/mimiclab/simlink/internal/presets"
	"github.com/mimiclab/simlink/internal/session"
)

// Server holds the simulated model state and the preset store.
type Server struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	computing bool
	model     string
	quality   string
	pose      string
	animation string
	params    map[string]any
	weights   []any
	presets   map[string]presets.Preset

	// computeDelay simulates how long a reward recompute keeps the backend
	// busy. Tests shrink it.
	computeDelay time.Duration

	// statusInterval drives the unsolicited status broadcast per connection.
	statusInterval time.Duration
}

// Option customizes the mock backend.
type Option func(*Server)

// WithComputeDelay overrides the simulated recompute duration.
func WithComputeDelay(d time.Duration) Option {
	return func(s *Server) { s.computeDelay = d }
}

// WithStatusInterval overrides the unsolicited status broadcast period.
func WithStatusInterval(d time.Duration) Option {
	return func(s *Server) { s.statusInterval = d }
}

// New creates a mock backend with a default humanoid model.
func New(logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		logger:         logger.Named("mocksim"),
		model:          "humanoid-v2",
		quality:        "medium",
		pose:           "stand",
		params:         map[string]any{"stiffness": 0.5, "damping": 0.1},
		weights:        []any{1.0},
		presets:        make(map[string]presets.Preset),
		computeDelay:   400 * time.Millisecond,
		statusInterval: 5 * time.Second,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register mounts the realtime endpoint, the preset store, and a health
// probe on the router.
func (s *Server) Register(r gin.IRouter) {
	r.GET("/ws", s.handleWS)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.GET("/presets", s.listPresets)
	api.GET("/presets/:name", s.getPreset)
	api.PUT("/presets/:name", s.savePreset)
	api.DELETE("/presets/:name", s.deletePreset)
}

// wsClient wraps one realtime connection. Replies and broadcasts race on the
// same socket, so writes are serialized.
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) send(msg *session.Message) error {
	data, err := msg.MarshalJSON()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &wsClient{conn: conn}
	remote := conn.RemoteAddr().String()
	s.logger.Info("dashboard connected", zap.String("remote", remote))

	stop := make(chan struct{})
	defer func() {
		close(stop)
		_ = conn.Close()
		s.logger.Info("dashboard disconnected", zap.String("remote", remote))
	}()

	go s.broadcastStatus(client, stop)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := session.ParseMessage(frame)
		if err != nil {
			s.logger.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		if reply := s.handle(client, msg); reply != nil {
			if err := client.send(reply); err != nil {
				s.logger.Warn("reply failed", zap.Error(err))
				return
			}
		}
	}
}

// handle applies a command to the model state and builds its reply. Replies
// echo the request's message_id so the dashboard can correlate them.
func (s *Server) handle(client *wsClient, msg *session.Message) *session.Message {
	switch msg.Kind() {
	case session.KindPing:
		return nil

	case session.KindStatusPoll:
		return s.statusMessage(msg.MessageID)

	case session.KindReward:
		s.mu.Lock()
		if w, ok := msg.Payload["weights"].([]any); ok {
			s.weights = w
		}
		s.computing = true
		s.mu.Unlock()
		// Recomputing the policy takes a while; flip the busy flag back via
		// an unsolicited status frame once done.
		go func() {
			time.Sleep(s.computeDelay)
			s.mu.Lock()
			s.computing = false
			s.mu.Unlock()
			if err := client.send(s.statusMessage("")); err != nil {
				s.logger.Debug("busy-clear status not delivered", zap.Error(err))
			}
		}()
		return s.ack(msg, map[string]any{"weights": s.snapshotWeights()})

	case session.KindParameter:
		s.mu.Lock()
		for k, v := range msg.Payload {
			s.params[k] = v
		}
		s.mu.Unlock()
		return s.ack(msg, msg.Payload)

	case session.KindPoseLoad:
		pose, _ := msg.Payload["pose"].(string)
		s.mu.Lock()
		s.pose = pose
		s.mu.Unlock()
		return s.ack(msg, map[string]any{"pose": pose})

	case session.KindAnimationLoad:
		name, _ := msg.Payload["name"].(string)
		s.mu.Lock()
		s.animation = name
		s.mu.Unlock()
		return s.ack(msg, map[string]any{"name": name})

	case session.KindQualityChange:
		quality, _ := msg.Payload["quality"].(string)
		s.mu.Lock()
		s.quality = quality
		s.mu.Unlock()
		return s.ack(msg, map[string]any{"quality": quality})

	case session.KindChatTurn:
		text, _ := msg.Payload["text"].(string)
		return s.ack(msg, map[string]any{
			"text":     text,
			"response": "acknowledged: " + text,
		})

	default:
		s.logger.Debug("ignoring unknown message type", zap.String("type", msg.Type))
		return nil
	}
}

func (s *Server) ack(req *session.Message, payload map[string]any) *session.Message {
	reply := session.NewMessage(req.Type+cnst.ReplySuffix, payload)
	reply.MessageID = req.MessageID
	return reply
}

// statusMessage builds a debug_model_info frame reflecting current state.
// An empty id gets a fresh one so unsolicited frames stay deduplicable.
func (s *Server) statusMessage(id string) *session.Message {
	s.mu.Lock()
	msg := session.NewMessage(cnst.TypeDebugModelInfo, map[string]any{
		cnst.FieldIsComputing: s.computing,
		"model":               s.model,
		"quality":             s.quality,
		"pose":                s.pose,
		"animation":           s.animation,
		"parameters":          s.params,
		"weights":             s.weights,
	})
	s.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	msg.MessageID = id
	return msg
}

func (s *Server) snapshotWeights() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.weights...)
}

func (s *Server) broadcastStatus(client *wsClient, stop chan struct{}) {
	ticker := time.NewTicker(s.statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := client.send(s.statusMessage("")); err != nil {
				return
			}
		}
	}
}
