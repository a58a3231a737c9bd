// Package config loads and validates the tripmailer runtime configuration
// from a YAML file: HTTP server settings, job-broker connection, mail-provider
// credentials, recipient-redirection policy, and the optional delivery event
// stream.
package config
