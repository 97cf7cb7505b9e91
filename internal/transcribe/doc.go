// Package transcribe turns uploaded audio into transcripts. It owns the
// lifecycle of temporary audio files, bounds how many transcriptions run at
// once, normalizes audio for engines that need 16 kHz WAV, and consults an
// optional transcript cache. Concrete engines live under internal/platform.
package transcribe
