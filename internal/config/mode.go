package config

import "git.home.luguber.info/inful/tails/internal/foundation/normalization"

// Mode selects how modules are produced: compiled on demand or loaded from a manifest.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
	ModeTest        Mode = "test"
)

var modeNormalizer = normalization.NewNormalizer("mode", map[string]Mode{
	"development": ModeDevelopment,
	"dev":         ModeDevelopment,
	"production":  ModeProduction,
	"prod":        ModeProduction,
	"test":        ModeTest,
}, ModeDevelopment)

// ParseMode converts user input into a Mode. Empty input yields development.
func ParseMode(raw string) (Mode, error) {
	return modeNormalizer.Parse(raw)
}

func (m Mode) String() string { return string(m) }
