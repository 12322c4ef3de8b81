// Package history records every playback session in SQLite so the API can
// show what the fish has sung, how often, and how each song ended.
//
// SQLiteRepository implements playback.Reporter; register it in
// playback.Deps.Reporters and every finished session lands in the
// play_history table.
package history
