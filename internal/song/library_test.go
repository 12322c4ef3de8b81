package song

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", "take_me_to_the_river", false},
		{"spaces", "Don't Worry Be Happy", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"dotdot", "..", true},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"traversal", "../etc", true},
		{"hidden", ".cache", true},
		{"nul", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidName) {
				t.Errorf("error %v is not ErrInvalidName", err)
			}
		})
	}
}

func TestLibrary_Path(t *testing.T) {
	lib := NewLibrary("/srv/songs")

	got, err := lib.Path("river", VocalsFile)
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if want := filepath.Join("/srv/songs", "river", "vocals.wav"); got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}

	if _, err := lib.MetadataPath("../x"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("MetadataPath(../x) error = %v, want ErrInvalidName", err)
	}
}

func TestLibrary_List(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "river", MainFile), 8000, 1, constant(0, 10))
	writeWAV(t, filepath.Join(dir, "river", VocalsFile), 8000, 1, constant(0, 10))
	writeWAV(t, filepath.Join(dir, "alpha", MainFile), 8000, 1, constant(0, 10))
	if err := os.WriteFile(filepath.Join(dir, "alpha", MetadataFile), []byte("bpm=90\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// Directories without a main track are not songs.
	if err := os.MkdirAll(filepath.Join(dir, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	lib := NewLibrary(dir)
	songs, err := lib.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if len(songs) != 2 {
		t.Fatalf("List() returned %d songs, want 2: %+v", len(songs), songs)
	}
	if songs[0].Name != "alpha" || songs[1].Name != "river" {
		t.Errorf("List() order = %q, %q", songs[0].Name, songs[1].Name)
	}
	if !songs[0].HasMetadata || songs[0].HasVocals {
		t.Errorf("alpha = %+v", songs[0])
	}
	if !songs[1].HasVocals || songs[1].HasDrums || songs[1].HasMetadata {
		t.Errorf("river = %+v", songs[1])
	}
}

func TestLibrary_ListCacheAndInvalidate(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "one", MainFile), 8000, 1, constant(0, 4))

	lib := NewLibrary(dir)
	first, err := lib.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("List() = %d songs, want 1", len(first))
	}

	writeWAV(t, filepath.Join(dir, "two", MainFile), 8000, 1, constant(0, 4))

	cached, _ := lib.List()
	if len(cached) != 1 {
		t.Errorf("cached List() = %d songs, want 1", len(cached))
	}

	lib.Invalidate()
	fresh, _ := lib.List()
	if len(fresh) != 2 {
		t.Errorf("List() after Invalidate = %d songs, want 2", len(fresh))
	}
}

func TestLibrary_ListMissingDirectory(t *testing.T) {
	lib := NewLibrary(filepath.Join(t.TempDir(), "absent"))

	songs, err := lib.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if songs == nil || len(songs) != 0 {
		t.Errorf("List() = %#v, want empty slice", songs)
	}
}

func TestLibrary_Exists(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "river", MainFile), 8000, 1, constant(0, 4))
	lib := NewLibrary(dir)

	if !lib.Exists("river") {
		t.Error("Exists(river) = false")
	}
	if lib.Exists("ocean") {
		t.Error("Exists(ocean) = true")
	}
	if lib.Exists("..") {
		t.Error("Exists(..) = true")
	}
}
