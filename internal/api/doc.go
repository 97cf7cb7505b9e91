// Package api exposes transcription over HTTP. Handlers parse multipart
// uploads, call the transcribe service or the job runner, and render the
// result as JSON or subtitles. Errors are mapped to status codes and safe
// messages in one place so internal details only reach the logs.
package api
