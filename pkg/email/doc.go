// Package email implements the transactional email pipeline: template
// rendering, job submission with caller-facing status projection, and the
// delivery worker that dispatches rendered messages through the configured
// mail provider with bounded retries and recipient redirection outside
// production.
package email
