package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/liuscraft/boombox/internal/audio"
	"github.com/liuscraft/boombox/internal/mixer"
	"github.com/liuscraft/boombox/internal/tools"
)

type testClient struct {
	t      *testing.T
	conn   *websocket.Conn
	events []eventMessage
}

// incoming 同时容纳响应与事件帧
type incoming struct {
	response
	Event   string `json:"event"`
	Channel string `json:"channel"`
	Sound   string `json:"sound"`
}

func newTestServer(t *testing.T) (*httptest.Server, *mixer.Mixer) {
	t.Helper()
	m, err := mixer.New(mixer.Config{Engine: audio.NewNullEngine()})
	if err != nil {
		t.Fatalf("mixer.New failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	executor := tools.NewToolExecutor()
	if err := tools.RegisterMixerTools(context.Background(), executor, m); err != nil {
		t.Fatalf("RegisterMixerTools failed: %v", err)
	}

	ts := httptest.NewServer(New(Config{Path: "/ws"}, m, executor).Handler())
	t.Cleanup(ts.Close)

	deadline := time.Now().Add(2 * time.Second)
	for !m.Ready() {
		if time.Now().After(deadline) {
			t.Fatal("mixer never became ready")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return ts, m
}

func dial(t *testing.T, ts *httptest.Server) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) read() incoming {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("read failed: %v", err)
	}
	var msg incoming
	if err := json.Unmarshal(data, &msg); err != nil {
		c.t.Fatalf("invalid frame %s: %v", data, err)
	}
	return msg
}

// call 发送请求并等待同 id 的响应，期间收到的事件被保存
func (c *testClient) call(req map[string]any) response {
	c.t.Helper()
	if err := c.conn.WriteJSON(req); err != nil {
		c.t.Fatalf("write failed: %v", err)
	}
	id, _ := req["id"].(string)
	for {
		msg := c.read()
		if msg.Event != "" {
			c.events = append(c.events, eventMessage{Event: msg.Event, Channel: msg.Channel, Sound: msg.Sound})
			continue
		}
		if msg.ID == id {
			return msg.response
		}
	}
}

func (c *testClient) waitEvent(name string) eventMessage {
	c.t.Helper()
	for _, e := range c.events {
		if e.Event == name {
			return e
		}
	}
	for {
		msg := c.read()
		if msg.Event == name {
			return eventMessage{Event: msg.Event, Channel: msg.Channel, Sound: msg.Sound}
		}
	}
}

func resultMap(t *testing.T, r response) map[string]any {
	t.Helper()
	m, ok := r.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result %#v", r.Result)
	}
	return m
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]bool
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || !body["ready"] {
		t.Fatalf("unexpected body %v (%v)", body, err)
	}
}

func TestPlayOverWebsocket(t *testing.T) {
	ts, m := newTestServer(t)
	c := dial(t, ts)

	if r := c.call(map[string]any{"id": "1", "op": "addChannel", "channel": "music", "volume": 60}); !r.OK {
		t.Fatalf("addChannel failed: %+v", r)
	}
	if r := c.call(map[string]any{"id": "2", "op": "add", "sound": "theme", "url": "theme.ogg"}); !r.OK {
		t.Fatalf("add failed: %+v", r)
	}
	r := c.call(map[string]any{
		"id": "3", "op": "play", "channel": "music", "sounds": []string{"theme"},
		"params": map[string]any{"transition": "none"},
	})
	if !r.OK {
		t.Fatalf("play failed: %+v", r)
	}

	if e := c.waitEvent("soundStarted"); e.Sound != "theme" || e.Channel != "music" {
		t.Fatalf("unexpected event %+v", e)
	}
	if v, _ := m.SoundVolume("theme"); v != 60 {
		t.Fatalf("volume = %d, want 60", v)
	}

	r = c.call(map[string]any{"id": "4", "op": "members", "channel": "music"})
	sounds, _ := resultMap(t, r)["sounds"].([]any)
	if len(sounds) != 1 || sounds[0] != "theme" {
		t.Fatalf("members = %v", sounds)
	}

	r = c.call(map[string]any{"id": "5", "op": "getChannelVolume", "channel": "music"})
	if v := resultMap(t, r)["volume"]; v != float64(60) {
		t.Fatalf("volume = %v, want 60", v)
	}
}

func TestErrorCodes(t *testing.T) {
	ts, _ := newTestServer(t)
	c := dial(t, ts)
	c.call(map[string]any{"id": "0", "op": "addChannel", "channel": "music", "volume": 50})

	tests := []struct {
		name string
		req  map[string]any
		code string
	}{
		{"unknown channel", map[string]any{"id": "1", "op": "play", "channel": "nope", "sound": "a"}, codeNotFound},
		{"volume out of range", map[string]any{"id": "2", "op": "setVolume", "channel": "music", "volume": 150}, codeInvalidArgument},
		{"missing volume", map[string]any{"id": "3", "op": "setVolume", "channel": "music"}, codeBadRequest},
		{"unknown op", map[string]any{"id": "4", "op": "dance"}, codeBadRequest},
		{"unknown transition", map[string]any{"id": "5", "op": "mute", "channel": "music", "params": map[string]any{"transition": "wobble"}}, codeInvalidArgument},
		{"unknown tool", map[string]any{"id": "6", "op": "tool", "tool": "launchRocket"}, codeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := c.call(tt.req)
			if r.OK {
				t.Fatalf("expected failure, got %+v", r)
			}
			if r.Code != tt.code {
				t.Fatalf("code = %s, want %s (error %s)", r.Code, tt.code, r.Error)
			}
		})
	}
}

func TestMalformedFrame(t *testing.T) {
	ts, _ := newTestServer(t)
	c := dial(t, ts)
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	msg := c.read()
	if msg.OK || msg.Code != codeBadRequest {
		t.Fatalf("unexpected response %+v", msg.response)
	}
}

func TestGlobalMuteOverWebsocket(t *testing.T) {
	ts, _ := newTestServer(t)
	c := dial(t, ts)

	steps := []struct {
		op    string
		muted bool
	}{
		{"muteAll", true},
		{"isMuted", true},
		{"toggleMuteAll", false},
		{"toggleMuteAll", true},
		{"unmuteAll", false},
	}
	for i, step := range steps {
		r := c.call(map[string]any{"id": step.op + string(rune('a'+i)), "op": step.op})
		if got := resultMap(t, r)["muted"]; got != step.muted {
			t.Fatalf("%s: muted = %v, want %v", step.op, got, step.muted)
		}
	}
}

func TestToolsOverWebsocket(t *testing.T) {
	ts, m := newTestServer(t)
	c := dial(t, ts)
	c.call(map[string]any{"id": "0", "op": "addChannel", "channel": "sfx", "volume": 40})

	r := c.call(map[string]any{"id": "1", "op": "tools"})
	list, ok := r.Result.([]any)
	if !ok || len(list) == 0 {
		t.Fatalf("unexpected tools result %#v", r.Result)
	}
	var names []string
	for _, item := range list {
		names = append(names, item.(map[string]any)["name"].(string))
	}
	if !slices.Contains(names, "setChannelVolume") {
		t.Fatalf("tools = %v", names)
	}

	r = c.call(map[string]any{
		"id": "2", "op": "tool", "tool": "setChannelVolume",
		"args": map[string]any{"channel": "sfx", "volume": 15},
	})
	if !r.OK {
		t.Fatalf("tool failed: %+v", r)
	}
	if got := m.ChannelVolume("sfx"); got != 15 {
		t.Fatalf("volume = %d, want 15", got)
	}
	if c.waitEvent("channelVolumeChanged").Channel != "sfx" {
		t.Fatal("expected channelVolumeChanged for sfx")
	}
}
