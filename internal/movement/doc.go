// Package movement derives the animatronic's movement timeline from a
// song's metadata and its audio.
//
// Three sources feed the timeline:
//
//   - Head: explicit keyframes from head_moves, each fired once when the
//     song reaches its timestamp. While no keyframe holds the head, a
//     low-amplitude pulse follows the beat (60/bpm seconds).
//   - Mouth: opens in proportion to the speech-band level of the vocal stem.
//   - Tail: once the drum stem crosses tail_threshold the song is in its
//     tail phase and the tail flaps on the beat (every other beat with
//     half_tempo_tail_flap), shifted earlier by compensate_tail.
//
// The Engine never touches hardware. It emits Commands through an
// Actuator, and Stop returns every motor to rest.
package movement
