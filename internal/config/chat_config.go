package config

import "time"

const (
	// Socket
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxFrameSize   = 8192
	ClientSendSize = 256

	// Messages
	MaxMessageLength = 2000

	// Event sinks (Telegram, Kafka)
	SinkTimeout = 5 * time.Second

	// Tokens issued by the admin CLI
	DevTokenTTL = 24 * time.Hour
)
