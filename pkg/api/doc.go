// Package api exposes the HTTP surface of the mail service: email
// submission and status lookup, queue statistics, worker administration,
// health and build information. Controllers implement APIController and are
// mounted under /api by the Server.
package api
