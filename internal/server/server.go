// Package server 通过 websocket 暴露 mixer 的控制接口，并向客户端推送 mixer 事件。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/liuscraft/boombox/internal/logging"
	"github.com/liuscraft/boombox/internal/mixer"
	"github.com/liuscraft/boombox/internal/tools"
)

// Mixer 服务端需要的 mixer 操作
type Mixer interface {
	tools.Controller
	AddChannel(name string, defaultVolume int) error
	Add(id, url string) error
	MuteAll()
	UnmuteAll()
	IsMuted() bool
	Ready() bool
	Subscribe(eventType mixer.EventType, handler mixer.EventHandler)
}

type Config struct {
	Listen string
	Path   string
}

type Server struct {
	cfg      Config
	mixer    Mixer
	tools    tools.ToolExecutor
	upgrader websocket.Upgrader

	clients map[*client]struct{}
	mu      sync.Mutex
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// New 创建服务端并订阅 mixer 事件。executor 为 nil 时 tools / tool 命令不可用
func New(cfg Config, m Mixer, executor tools.ToolExecutor) *Server {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	s := &Server{
		cfg:     cfg,
		mixer:   m,
		tools:   executor,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, t := range []mixer.EventType{
		mixer.EventSoundStarted,
		mixer.EventSoundReleased,
		mixer.EventChannelVolumeChanged,
		mixer.EventEngineReady,
	} {
		m.Subscribe(t, s.broadcast)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWebsocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// ListenAndServe 阻塞直到 ctx 结束或监听失败
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Infof("Server: listening on %s%s", s.cfg.Listen, s.cfg.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.closeClients()
		return err
	case err := <-errCh:
		s.closeClients()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ready := s.mixer.Ready()
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ready": ready})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnf("Server: upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	logging.Infof("Server: client connected from %s", r.RemoteAddr)

	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		_ = conn.Close()
		logging.Infof("Server: client %s disconnected", r.RemoteAddr)
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debugf("Server: read error: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		resp := s.handleMessage(r.Context(), data)
		if err := c.writeJSON(resp); err != nil {
			logging.Warnf("Server: write response failed: %v", err)
			return
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, data []byte) response {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		return failure("", fmt.Errorf("%w: %v", errBadRequest, err))
	}
	result, err := s.dispatch(ctx, req)
	if err != nil {
		return failure(req.ID, err)
	}
	return response{ID: req.ID, OK: true, Result: result}
}

func failure(id string, err error) response {
	return response{ID: id, Error: err.Error(), Code: errorCode(err)}
}

func (s *Server) dispatch(ctx context.Context, req request) (any, error) {
	m := s.mixer
	switch req.Op {
	case "addChannel":
		if req.Volume == nil {
			return nil, fmt.Errorf("%w: addChannel requires volume", errBadRequest)
		}
		return nil, m.AddChannel(req.Channel, *req.Volume)
	case "add":
		return nil, m.Add(req.Sound, req.URL)
	case "play":
		return nil, m.Play(req.Channel, req.soundList(), req.Params.play())
	case "stop":
		return nil, m.Stop(req.soundList(), req.Params.fade())
	case "stopChannel":
		return nil, m.StopChannel(req.Channel, req.Params.fade())
	case "mute":
		return nil, m.Mute(req.Channel, req.Params.fade())
	case "unmute":
		return nil, m.Unmute(req.Channel, req.Params.fade())
	case "setVolume":
		if req.Volume == nil {
			return nil, fmt.Errorf("%w: setVolume requires volume", errBadRequest)
		}
		return nil, m.SetVolume(req.Channel, *req.Volume)
	case "getChannelVolume":
		return map[string]any{"channel": req.Channel, "volume": m.ChannelVolume(req.Channel)}, nil
	case "members":
		ids, err := m.Members(req.Channel)
		if err != nil {
			return nil, err
		}
		return map[string]any{"channel": req.Channel, "sounds": ids}, nil
	case "muteAll":
		m.MuteAll()
		return map[string]bool{"muted": m.IsMuted()}, nil
	case "unmuteAll":
		m.UnmuteAll()
		return map[string]bool{"muted": m.IsMuted()}, nil
	case "isMuted":
		return map[string]bool{"muted": m.IsMuted()}, nil
	case "toggleMuteAll":
		return map[string]bool{"muted": m.ToggleMuteAll()}, nil
	case "tools":
		return s.listTools(ctx)
	case "tool":
		return s.runTool(ctx, req)
	default:
		return nil, fmt.Errorf("%w: unknown op %q", errBadRequest, req.Op)
	}
}

// soundList sounds 优先，其次是单个 sound
func (req request) soundList() []string {
	if len(req.Sounds) > 0 {
		return req.Sounds
	}
	if req.Sound != "" {
		return []string{req.Sound}
	}
	return nil
}

type toolSummary struct {
	Name string `json:"name"`
	Desc string `json:"desc"`
}

func (s *Server) listTools(ctx context.Context) (any, error) {
	if s.tools == nil {
		return []toolSummary{}, nil
	}
	infos, err := s.tools.Infos(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]toolSummary, 0, len(infos))
	for _, info := range infos {
		out = append(out, toolSummary{Name: info.Name, Desc: info.Desc})
	}
	return out, nil
}

func (s *Server) runTool(ctx context.Context, req request) (any, error) {
	if s.tools == nil {
		return nil, fmt.Errorf("%w: %s", tools.ErrToolNotFound, req.Tool)
	}
	out, err := s.tools.Execute(ctx, req.Tool, string(req.Args))
	if err != nil {
		return nil, err
	}
	if json.Valid([]byte(out)) {
		return json.RawMessage(out), nil
	}
	return out, nil
}

func (s *Server) broadcast(e mixer.Event) {
	msg := newEventMessage(e)
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.writeJSON(msg); err != nil {
			logging.Debugf("Server: push %s failed: %v", msg.Event, err)
		}
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		_ = c.conn.Close()
	}
}
