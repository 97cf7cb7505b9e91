// Package whisper implements the transcription engine backed by the
// whisper.cpp command-line program. Each request runs one whisper-cli
// process that writes its segments as JSON next to the input audio.
package whisper
