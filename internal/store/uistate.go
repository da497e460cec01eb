package store

import (
	"github.com/rs/zerolog"
)

const uiPrefix = "swashark.ui."

const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// UIState holds presentation preferences that outlive a session.
type UIState struct {
	kv  KV
	log zerolog.Logger
}

func NewUIState(kv KV, log zerolog.Logger) *UIState {
	return &UIState{kv: kv, log: log}
}

func (u *UIState) Theme() string {
	v, ok, err := u.kv.Get(uiPrefix + "theme")
	if err != nil || !ok || (v != ThemeDark && v != ThemeLight) {
		return ThemeDark
	}
	return v
}

func (u *UIState) SetTheme(theme string) {
	if err := u.kv.Set(uiPrefix+"theme", theme); err != nil {
		u.log.Warn().Err(err).Msg("ui state write failed")
	}
}

// LastVersion is the API version selected in the previous session.
func (u *UIState) LastVersion() string {
	v, _, err := u.kv.Get(uiPrefix + "version")
	if err != nil {
		return ""
	}
	return v
}

func (u *UIState) SetLastVersion(name string) {
	if err := u.kv.Set(uiPrefix+"version", name); err != nil {
		u.log.Warn().Err(err).Msg("ui state write failed")
	}
}
