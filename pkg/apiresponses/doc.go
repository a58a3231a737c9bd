// Package apiresponses provides standardized HTTP API response helpers
// (error, not-found, bad-request, etc.) shared by all API controllers.
package apiresponses
