package storage

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaveAndLoadArtifacts(t *testing.T) {
	ls := NewLocalStorage(t.TempDir())
	dir, err := ls.JobDir("job-1")
	if err != nil {
		t.Fatalf("JobDir: %v", err)
	}
	if !strings.Contains(dir, time.Now().Format("2006-01-02")) {
		t.Errorf("job dir %q missing date segment", dir)
	}

	art := Artifacts{
		Transcript:   "# 00:00 --> 05:00\nhello",
		Translated:   "# 00:00 --> 05:00\nこんにちは",
		LanguageCode: "ja",
		Integrated:   "# 00:00 --> 05:00\nhello\n\nこんにちは",
	}
	meta := JobMetadata{
		JobID:     "job-1",
		Filename:  "talk.mp3",
		WordCount: 1,
		Settings:  MetadataSettings{ChunkMinutes: 5, OverlapSeconds: 2},
		CreatedAt: time.Now(),
	}
	if err := ls.SaveArtifacts(dir, art, meta); err != nil {
		t.Fatalf("SaveArtifacts: %v", err)
	}

	got, err := ls.LoadArtifact(dir, TranscriptFile)
	if err != nil {
		t.Fatalf("LoadArtifact: %v", err)
	}
	if got != art.Transcript {
		t.Errorf("transcript = %q, want %q", got, art.Transcript)
	}

	translated, err := ls.LoadArtifact(dir, TranslatedFile("ja"))
	if err != nil {
		t.Fatalf("LoadArtifact translated: %v", err)
	}
	if translated != art.Translated {
		t.Errorf("translated = %q", translated)
	}

	loaded, err := ls.LoadMetadata(dir)
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}
	if loaded.JobID != "job-1" || loaded.Filename != "talk.mp3" {
		t.Errorf("metadata = %+v", loaded)
	}
	if loaded.Settings.ChunkMinutes != 5 || loaded.Settings.OverlapSeconds != 2 {
		t.Errorf("metadata settings = %+v", loaded.Settings)
	}
	want := []string{TranslatedFile("ja"), TranscriptFile, IntegratedFile}
	if len(loaded.Files) != len(want) {
		t.Fatalf("metadata files = %v, want %v", loaded.Files, want)
	}
	for i, name := range want {
		if loaded.Files[i] != name {
			t.Errorf("files[%d] = %q, want %q", i, loaded.Files[i], name)
		}
	}
}

func TestSaveMetadataRewrite(t *testing.T) {
	ls := NewLocalStorage(t.TempDir())
	dir, _ := ls.JobDir("job-7")

	meta := JobMetadata{JobID: "job-7", CreatedAt: time.Now()}
	if err := ls.SaveArtifacts(dir, Artifacts{Transcript: "text"}, meta); err != nil {
		t.Fatalf("SaveArtifacts: %v", err)
	}

	meta.GDriveURL = "https://drive.google.com/drive/folders/xyz"
	if err := ls.SaveMetadata(dir, meta); err != nil {
		t.Fatalf("SaveMetadata: %v", err)
	}

	loaded, err := ls.LoadMetadata(dir)
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}
	if loaded.GDriveURL != meta.GDriveURL {
		t.Errorf("gdrive url = %q", loaded.GDriveURL)
	}
	if len(loaded.Files) != 1 || loaded.Files[0] != TranscriptFile {
		t.Errorf("files = %v", loaded.Files)
	}
}

func TestSaveArtifactsSkipsEmptyTranslation(t *testing.T) {
	ls := NewLocalStorage(t.TempDir())
	dir, _ := ls.JobDir("job-2")

	if err := ls.SaveArtifacts(dir, Artifacts{Transcript: "text"}, JobMetadata{JobID: "job-2"}); err != nil {
		t.Fatalf("SaveArtifacts: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "transcript.") && e.Name() != TranscriptFile {
			t.Errorf("unexpected translation artifact %q", e.Name())
		}
		if e.Name() == IntegratedFile {
			t.Errorf("unexpected integrated artifact")
		}
	}
}

func TestArtifactNamesExcludesMetadata(t *testing.T) {
	ls := NewLocalStorage(t.TempDir())
	dir, _ := ls.JobDir("job-6")

	art := Artifacts{Transcript: "text", Translated: "訳", LanguageCode: "ja"}
	if err := ls.SaveArtifacts(dir, art, JobMetadata{JobID: "job-6"}); err != nil {
		t.Fatalf("SaveArtifacts: %v", err)
	}

	names, err := ls.ArtifactNames(dir)
	if err != nil {
		t.Fatalf("ArtifactNames: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("names = %v, want transcript and translation only", names)
	}
	for _, n := range names {
		if n == MetadataFile {
			t.Errorf("metadata listed as artifact")
		}
	}
}

func TestLoadArtifactRejectsPaths(t *testing.T) {
	ls := NewLocalStorage(t.TempDir())
	dir, _ := ls.JobDir("job-3")

	for _, name := range []string{"../secret", "/etc/passwd", ".hidden"} {
		if _, err := ls.LoadArtifact(dir, name); err == nil {
			t.Errorf("expected rejection for %q", name)
		}
	}
}

func TestZipArtifacts(t *testing.T) {
	ls := NewLocalStorage(t.TempDir())
	dir, _ := ls.JobDir("job-4")
	art := Artifacts{Transcript: "transcript body", Translated: "訳", LanguageCode: "ja"}
	if err := ls.SaveArtifacts(dir, art, JobMetadata{JobID: "job-4"}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := ls.ZipArtifacts(dir, &buf); err != nil {
		t.Fatalf("ZipArtifacts: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{TranscriptFile, TranslatedFile("ja"), MetadataFile} {
		if !names[want] {
			t.Errorf("zip missing %q (have %v)", want, names)
		}
	}
}

func TestChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.mp3")
	if err := os.WriteFile(path, []byte("audio bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	first, err := Checksum(path)
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("checksum length = %d, want 64 hex chars", len(first))
	}
	second, _ := Checksum(path)
	if first != second {
		t.Error("checksum not deterministic")
	}

	if _, err := Checksum(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"talk.mp3", "talk.mp3"},
		{"../../etc/passwd", "passwd"},
		{`a:b*c?.mp3`, "a_b_c_.mp3"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := strings.Repeat("x", 150) + ".mp3"
	if got := SanitizeFilename(long); len(got) != 100 {
		t.Errorf("long name length = %d, want 100", len(SanitizeFilename(long)))
	}
}
