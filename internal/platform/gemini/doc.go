// Package gemini implements transcribe.Engine on top of Google's Gemini API.
//
// The audio file is sent as inline data together with a short instruction
// prompt, and the model is asked to answer with JSON that matches a fixed
// response schema (detected language plus timed segments). Responses are
// parsed into domain.Transcript values.
//
// Transient API failures are retried with exponential backoff and jitter.
// Blocked content and malformed responses are treated as permanent.
package gemini
