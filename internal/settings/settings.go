// Package settings persists the per-channel volume settings across restarts.
package settings

import (
	"encoding/json"
	"fmt"

	"github.com/liuscraft/boombox/internal/logging"
)

const DefaultKey = "boomBox"

type ChannelSettings struct {
	Volume int `json:"volume"`
}

// Settings maps a channel name to its configured settings.
type Settings map[string]ChannelSettings

// Load reads the settings stored under key. Missing or unreadable data yields
// empty settings; the failure is only logged.
func Load(store Store, key string) Settings {
	if store == nil {
		return Settings{}
	}
	raw, ok, err := store.Get(key)
	if err != nil {
		logging.Errorf("Settings: could not load the settings: %v", err)
		return Settings{}
	}
	if !ok || raw == "" {
		return Settings{}
	}

	loaded := Settings{}
	if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
		logging.Errorf("Settings: could not parse the settings: %v", err)
		return Settings{}
	}
	return loaded
}

// Save serializes s under key.
func Save(store Store, key string, s Settings) error {
	if store == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := store.Set(key, string(data)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
