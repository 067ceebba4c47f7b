// Package observability builds the zap logger shared by the API server,
// the job runner and the CLI.
package observability
