// Package song reads songs from the on-disk library: the per-song
// metadata.txt choreography file and the three-layer WAV track (full mix,
// isolated vocals, isolated drums) that playback streams in chunks.
//
// # Layout
//
//	<songs_dir>/<name>/full.wav
//	<songs_dir>/<name>/vocals.wav
//	<songs_dir>/<name>/drums.wav
//	<songs_dir>/<name>/metadata.txt
//
// # Metadata format
//
//	gain=0.8
//	bpm=100
//	tail_threshold=1200
//	compensate_tail=0.1
//	half_tempo_tail_flap=true
//	head_moves=2.0:1,4.5:0
//
// A missing metadata file yields DefaultMetadata. Malformed lines are
// skipped and the affected key keeps its default.
//
// # Usage
//
//	lib := song.NewLibrary(cfg.Songs.Dir)
//	path, err := lib.MetadataPath(name)
//	if err != nil {
//	    return err
//	}
//	meta := song.LoadMetadata(path)
//	r, err := lib.Open(name)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	for {
//	    chunk, err := r.NextChunk(1024)
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    ...
//	}
package song
