package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 30 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const SweepJobInterval = 15 * time.Minute

// Live connection tuning
const (
	SocketWriteWait      = 10 * time.Second
	SocketPongWait       = 60 * time.Second
	SocketPingPeriod     = (SocketPongWait * 9) / 10
	SocketMaxMessageSize = 4 * 1024
	SocketSendBuffer     = 64
	SocketAdmitTimeout   = 5 * time.Second
)

// Sync client defaults
const (
	SyncRefreshInterval = 30 * time.Second
	SyncMaxBackoff      = 30 * time.Second
)

const ServiceName = "pairdrop"
