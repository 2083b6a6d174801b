// Package internal holds server-side configuration shared by cmd binaries.
package internal

import "time"

type Config struct {
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=8000"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	AuthSecret         string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration  time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	AllowedEmailDomain string        `env:"ALLOWED_EMAIL_DOMAIN,default=srm.edu.in"`

	ModerationThreshold float64       `env:"MODERATION_THRESHOLD,default=0.95"`
	SearchLimit         int           `env:"SEARCH_LIMIT,default=100"`
	SendTimeout         time.Duration `env:"SEND_TIMEOUT,default=5s"`
	MaxMessageSize      int64         `env:"MAX_MESSAGE_SIZE,default=4096"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}
