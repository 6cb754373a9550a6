package constants

import "time"

const (
	DefaultBaseURL   = "https://epicleaderboard.com"
	DefaultUserAgent = "X-EpicLeaderboard Go"
	DefaultLogLevel  = "info"
)

const (
	DefaultMaxConnsPerHost = 100
	MaxIdleConnDuration    = 1 * time.Minute
)

const (
	// 0 disables the per-call timeout
	DefaultRequestTimeout = 0 * time.Second
)

const (
	MaxTimeframesPerQuery = 5
)
