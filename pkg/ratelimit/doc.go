// Package ratelimit provides per-IP rate limiting middleware for HTTP servers.
package ratelimit
