// Package discovery holds the in-network host and port conventions that
// portside binaries fall back to when an address is not configured.
package discovery

import (
	"net"
	"strconv"
	"strings"
)

// Protocol names which listener of a service an address refers to.
type Protocol string

const (
	GRPC Protocol = "grpc"
	HTTP Protocol = "http"
	TCP  Protocol = "tcp"
)

const (
	// ServiceProcurement serves the procurement HTTP API and its health endpoint.
	ServiceProcurement = "procurement"
	// ServiceWorker runs the outbox relay.
	ServiceWorker = "worker"
	// ServiceKafka is the event broker the relay publishes to.
	ServiceKafka = "kafka"
)

var ports = map[string]map[Protocol]int{
	ServiceProcurement: {HTTP: 8080, GRPC: 8082},
	ServiceWorker:      {GRPC: 8089},
	ServiceKafka:       {TCP: 9092},
}

// Addr returns host:port for service over proto, or "" when there is no
// convention.
func Addr(service string, proto Protocol) string {
	service = strings.TrimSpace(service)
	port, ok := ports[service][proto]
	if !ok {
		return ""
	}
	return net.JoinHostPort(service, strconv.Itoa(port))
}

// Listen returns the all-interfaces listen address (":port") a service binds
// for proto.
func Listen(service string, proto Protocol) string {
	port, ok := ports[strings.TrimSpace(service)][proto]
	if !ok {
		return ""
	}
	return ":" + strconv.Itoa(port)
}

// BaseURL returns value without a trailing slash when set, otherwise the
// http://host:port convention for service.
func BaseURL(value, service string) string {
	if value = strings.TrimSpace(value); value != "" {
		return strings.TrimRight(value, "/")
	}
	addr := Addr(service, HTTP)
	if addr == "" {
		return ""
	}
	return "http://" + addr
}
