// Package api serves the HTTP control API and the live event stream.
//
// Routes, all under /api/v1:
//
//	GET  /health              component health, 503 when degraded
//	GET  /status              song mode, worker state, current session
//	GET  /songs               the song library
//	POST /songs/{name}/play   start a song (202), 409 while one plays
//	POST /playback/stop       stop the current song, 409 when idle
//	GET  /history             play history (?song=&outcome=&limit=&offset=)
//	GET  /history/stats       per-song play counts
//	GET  /ws                  WebSocket event stream (?channels=a,b)
//
// The Hub implements playback.Hub, so playback state and phase changes
// reach WebSocket clients subscribed to "playback.state" or
// "playback.phase". The serve command also broadcasts "library.changed"
// when the song directory changes.
package api
