package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeTarget struct {
	mu       sync.Mutex
	channels map[string]int
	sounds   map[string]string
	err      error
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{channels: map[string]int{}, sounds: map[string]string{}}
}

func (f *fakeTarget) AddChannel(name string, volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[name]; !ok {
		f.channels[name] = volume
	}
	return nil
}

func (f *fakeTarget) Add(id, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.sounds[id]; !ok {
		f.sounds[id] = url
	}
	return nil
}

func (f *fakeTarget) sound(id string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url, ok := f.sounds[id]
	return url, ok
}

const testCatalog = `
channels:
  - name: music
    volume: 60
  - name: sfx
    volume: 80
sounds:
  - id: theme
    url: sounds/theme.ogg
  - id: click
    url: /abs/click.wav
  - id: remote
    url: https://example.com/boom.mp3
`

func writeCatalog(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return p
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	c, err := Load(writeCatalog(t, dir, testCatalog))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(c.Channels) != 2 || c.Channels[0].Name != "music" || c.Channels[0].Volume != 60 {
		t.Fatalf("unexpected channels: %+v", c.Channels)
	}

	want := map[string]string{
		"theme":  filepath.Join(dir, "sounds/theme.ogg"),
		"click":  "/abs/click.wav",
		"remote": "https://example.com/boom.mp3",
	}
	for _, s := range c.Sounds {
		if s.URL != want[s.ID] {
			t.Errorf("sound %s url = %s, want %s", s.ID, s.URL, want[s.ID])
		}
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{"bad yaml", "channels: [", "parse catalog"},
		{"missing channel name", "channels:\n  - volume: 10\n", "name is required"},
		{"volume out of range", "channels:\n  - name: a\n    volume: 120\n", "out of range"},
		{"duplicate channel", "channels:\n  - name: a\n  - name: a\n", "duplicate name"},
		{"missing url", "sounds:\n  - id: a\n", "url is required"},
		{"duplicate sound", "sounds:\n  - id: a\n    url: a.wav\n  - id: a\n    url: b.wav\n", "duplicate id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), "")
			if err == nil || !strings.Contains(err.Error(), tt.errPart) {
				t.Fatalf("error = %v, want containing %q", err, tt.errPart)
			}
		})
	}
}

func TestApply(t *testing.T) {
	c, err := Parse([]byte(testCatalog), "/data")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	target := newFakeTarget()
	if err := c.Apply(target); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if target.channels["sfx"] != 80 {
		t.Fatalf("sfx volume = %d", target.channels["sfx"])
	}
	if url, _ := target.sound("theme"); url != filepath.Join("/data", "sounds/theme.ogg") {
		t.Fatalf("theme url = %s", url)
	}

	target.err = errors.New("engine down")
	if err := c.Apply(target); err == nil {
		t.Fatal("expected joined error")
	}
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, testCatalog)
	target := newFakeTarget()

	w, err := Watch(path, target)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	writeCatalog(t, dir, testCatalog+"  - id: fresh\n    url: fresh.wav\n")

	select {
	case c := <-w.Reloaded:
		if len(c.Sounds) != 4 {
			t.Fatalf("reloaded %d sounds, want 4", len(c.Sounds))
		}
	case err := <-w.Errors:
		t.Fatalf("reload error: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("catalog was not reloaded")
	}
	if url, ok := target.sound("fresh"); !ok || url != filepath.Join(dir, "fresh.wav") {
		t.Fatalf("fresh sound not applied: %q", url)
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, testCatalog)

	w, err := Watch(path, newFakeTarget())
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "notes.yaml"), []byte("x: 1"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	select {
	case <-w.Reloaded:
		t.Fatal("reloaded for an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}
