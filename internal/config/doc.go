// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional config file. It provides type-safe
// access to the settings needed by the HTTP server, the transcription engines,
// and the background job runner.
package config
