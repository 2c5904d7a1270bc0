package main

import (
	"fmt"
	"time"
)

type Config struct {
	BufferSize                int           `env:"BUFFER_SIZE,default=64"`
	ConnectionBufferSize      int           `env:"CONNECTION_BUFFER_SIZE,default=32"`
	ModerationCharReplacement string        `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
	HistoryLimit              int           `env:"HISTORY_LIMIT,default=50"`
	DispatchTimeout           time.Duration `env:"DISPATCH_TIMEOUT,default=3s"`
	RestartInterval           time.Duration `env:"RESTART_INTERVAL,default=2s"`
	HeartbeatInterval         time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	AuthTokenDuration         time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	BadgerFilepath            string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath             string        `env:"BLUGE_FILEPATH,required=true"`
	LogLevel                  string        `env:"LOG_LEVEL,default=info"`
	Host                      string        `env:"HOST,default=localhost"`
	Port                      int           `env:"PORT,default=8080"`
	// 0 disables the debug inspector.
	DebugPort int `env:"DEBUG_PORT,default=0"`
}

// CharacterRune validates the replacement character setting.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
