// Package domain contains the core entities of the transcription service:
// transcripts and their timed segments, language codes, and asynchronous
// transcription jobs. It is independent of any engine, store, or transport.
package domain
