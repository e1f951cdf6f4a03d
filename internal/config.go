package internal

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host            string        `env:"HOST,default=0.0.0.0"`
	Port            int           `env:"PORT,required=true"`
	LogLevel        string        `env:"LOG_LEVEL,required=true"`
	BadgerFilepath  string        `env:"BADGER_FILEPATH,required=true"`
	JWTSecret       string        `env:"JWT_SECRET,required=true"`
	JWTIssuer       string        `env:"JWT_ISSUER,default=chatwire"`
	TokenDuration   time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT,default=5m"`
	SendBuffer      int           `env:"SEND_BUFFER,default=64"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=30s"`
	CensoredWords   string        `env:"CENSORED_WORDS"`
	CharReplacement string        `env:"CHARACTER_REPLACEMENT,default=*"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS"`
	DebugPort       int           `env:"DEBUG_PORT,default=8081"`
}

// CensoredWordList splits the comma-separated moderation word list. An
// empty variable disables censoring.
func (c Config) CensoredWordList() []string {
	if c.CensoredWords == "" {
		return nil
	}
	var words []string
	for _, word := range strings.Split(c.CensoredWords, ",") {
		if word = strings.TrimSpace(word); word != "" {
			words = append(words, word)
		}
	}
	return words
}

// AllowedOriginList splits the comma-separated browser origins allowed
// on the websocket handshake. Empty means same-host only.
func (c Config) AllowedOriginList() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c Config) CharacterRune() (rune, error) {
	r := []rune(c.CharReplacement)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			c.CharReplacement,
		)
	}
	return r[0], nil
}
