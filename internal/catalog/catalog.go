// Package catalog 从 YAML 文件声明频道和声音，并在文件变化时重新加载。
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog 声音目录
//
//	channels:
//	  - name: music
//	    volume: 60
//	sounds:
//	  - id: theme
//	    url: sounds/theme.ogg
type Catalog struct {
	Channels []ChannelEntry `yaml:"channels"`
	Sounds   []SoundEntry   `yaml:"sounds"`
}

type ChannelEntry struct {
	Name   string `yaml:"name"`
	Volume int    `yaml:"volume"`
}

type SoundEntry struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// Target 目录应用到的对象，两个方法都必须是幂等的
type Target interface {
	AddChannel(name string, defaultVolume int) error
	Add(id, url string) error
}

// Load 读取并校验目录文件，相对路径的 url 以目录文件所在目录为基准
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

func Parse(data []byte, baseDir string) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	for i := range c.Sounds {
		c.Sounds[i].URL = resolveURL(baseDir, c.Sounds[i].URL)
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	channels := make(map[string]bool, len(c.Channels))
	for i, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("catalog channel #%d: name is required", i)
		}
		if channels[ch.Name] {
			return fmt.Errorf("catalog channel %s: duplicate name", ch.Name)
		}
		if ch.Volume < 0 || ch.Volume > 100 {
			return fmt.Errorf("catalog channel %s: volume %d out of range 0..100", ch.Name, ch.Volume)
		}
		channels[ch.Name] = true
	}

	sounds := make(map[string]bool, len(c.Sounds))
	for i, s := range c.Sounds {
		if s.ID == "" {
			return fmt.Errorf("catalog sound #%d: id is required", i)
		}
		if s.URL == "" {
			return fmt.Errorf("catalog sound %s: url is required", s.ID)
		}
		if sounds[s.ID] {
			return fmt.Errorf("catalog sound %s: duplicate id", s.ID)
		}
		sounds[s.ID] = true
	}
	return nil
}

// Apply 先创建频道再注册声音；已存在的频道和声音保持不变
func (c *Catalog) Apply(t Target) error {
	var errs []error
	for _, ch := range c.Channels {
		if err := t.AddChannel(ch.Name, ch.Volume); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", ch.Name, err))
		}
	}
	for _, s := range c.Sounds {
		if err := t.Add(s.ID, s.URL); err != nil {
			errs = append(errs, fmt.Errorf("sound %s: %w", s.ID, err))
		}
	}
	return errors.Join(errs...)
}

func resolveURL(baseDir, url string) string {
	if baseDir == "" || strings.Contains(url, "://") || filepath.IsAbs(url) {
		return url
	}
	return filepath.Join(baseDir, url)
}
