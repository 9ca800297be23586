// Package middleware provides HTTP middleware for the curator server:
// request logging in W3C Extended Log Format, Prometheus request metrics
// and gzip response compression.
package middleware
