// Package audio renders PCM blocks to a sound device.
//
// Backends:
//   - oto: the system sound card via github.com/ebitengine/oto/v3
//     (build with -tags headless to leave it out)
//   - null: discards audio, for headless hosts and tests
package audio
