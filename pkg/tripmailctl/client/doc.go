// Package client is a small HTTP client for the tripmailer API, used by the
// tripmailctl command line tool.
package client
