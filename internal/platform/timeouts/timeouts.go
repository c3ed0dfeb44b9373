// Package timeouts defines shared timeout constants used across binaries.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// HTTPRead caps the time to read a full API request.
const HTTPRead = 15 * time.Second

// HTTPWrite caps the time to write an API response.
const HTTPWrite = 30 * time.Second

// HTTPIdle bounds keep-alive connections between requests.
const HTTPIdle = 60 * time.Second

// HTTPClient caps outbound HTTP calls made by tools such as the seeder.
const HTTPClient = 10 * time.Second

// Shutdown limits how long a server waits for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second

// BrokerPublish caps a single relay publish to the message broker.
const BrokerPublish = 10 * time.Second
