package tagging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

func testMetadata() Metadata {
	return Metadata{
		Title:       "Episode 12: Interview",
		Podcast:     "The Show",
		Artist:      "Host Name",
		Description: "We talk about things.",
		PublishDate: "2024-03-05T10:00:00Z",
		Genre:       "Podcast",
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

// minimalFLAC is a magic marker, a zeroed StreamInfo block flagged last and
// some stand-in frame bytes.
func minimalFLAC() []byte {
	var buf bytes.Buffer
	buf.WriteString("fLaC")
	buf.Write([]byte{0x80, 0x00, 0x00, 0x22})
	buf.Write(make([]byte, 34))
	buf.Write([]byte{0xff, 0xf8, 0x01, 0x02, 0x03})
	return buf.Bytes()
}

func TestNewVorbisComment(t *testing.T) {
	vc := newVorbisComment(testMetadata())

	check := func(entry string) {
		t.Helper()
		for _, c := range vc.Comments {
			if c == entry {
				return
			}
		}
		t.Errorf("Field %s not found in VorbisComment", entry)
	}

	check("TITLE=Episode 12: Interview")
	check("ARTIST=Host Name")
	check("ALBUM=The Show")
	check("DATE=2024-03-05")
	check("GENRE=Podcast")
	check("DESCRIPTION=We talk about things.")

	if vc.Vendor != vendor {
		t.Errorf("Expected vendor %q, got %q", vendor, vc.Vendor)
	}
}

func TestNewVorbisComment_SkipsEmptyFields(t *testing.T) {
	vc := newVorbisComment(Metadata{Title: "Only Title"})
	if len(vc.Comments) != 1 || vc.Comments[0] != "TITLE=Only Title" {
		t.Errorf("Expected only TITLE, got %v", vc.Comments)
	}
}

func TestTagFile_MP3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ep.mp3")
	if err := os.WriteFile(path, []byte("not-really-mpeg-frames"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := TagFile(path, testMetadata(), testPNG(t)); err != nil {
		t.Fatalf("TagFile failed: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer tag.Close()

	if tag.Title() != "Episode 12: Interview" {
		t.Errorf("Expected title, got %q", tag.Title())
	}
	if tag.Album() != "The Show" {
		t.Errorf("Expected album, got %q", tag.Album())
	}
	if tag.Artist() != "Host Name" {
		t.Errorf("Expected artist, got %q", tag.Artist())
	}
	if tag.Year() != "2024-03-05" {
		t.Errorf("Expected recording date 2024-03-05, got %q", tag.Year())
	}
	if pics := tag.GetFrames(tag.CommonID("Attached picture")); len(pics) != 1 {
		t.Errorf("Expected one attached picture, got %d", len(pics))
	}
	if comments := tag.GetFrames(tag.CommonID("Comments")); len(comments) != 1 {
		t.Errorf("Expected one comment frame, got %d", len(comments))
	}
}

func TestTagFile_MP3RetagReplacesPicture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ep.mp3")
	os.WriteFile(path, []byte("frames"), 0644)

	art := testPNG(t)
	TagFile(path, testMetadata(), art)
	if err := TagFile(path, testMetadata(), art); err != nil {
		t.Fatalf("second TagFile failed: %v", err)
	}

	tag, _ := id3v2.Open(path, id3v2.Options{Parse: true})
	defer tag.Close()
	if pics := tag.GetFrames(tag.CommonID("Attached picture")); len(pics) != 1 {
		t.Errorf("Expected retag to keep a single picture, got %d", len(pics))
	}
}

func TestTagFile_FLAC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ep.flac")
	orig := minimalFLAC()
	if err := os.WriteFile(path, orig, 0644); err != nil {
		t.Fatal(err)
	}

	if err := TagFile(path, testMetadata(), testPNG(t)); err != nil {
		t.Fatalf("TagFile failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	f, err := flac.ParseBytes(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}

	if f.Meta[0].Type != flac.StreamInfo {
		t.Errorf("Expected StreamInfo first, got %v", f.Meta[0].Type)
	}
	if !bytes.Equal(f.Frames, orig[42:]) {
		t.Error("Audio frames were modified")
	}

	var title string
	pictures := 0
	for _, block := range f.Meta {
		switch block.Type {
		case flac.VorbisComment:
			vc, err := flacvorbis.ParseFromMetaDataBlock(*block)
			if err != nil {
				t.Fatalf("parse vorbis comment failed: %v", err)
			}
			if vals, _ := vc.Get("TITLE"); len(vals) > 0 {
				title = vals[0]
			}
		case flac.Picture:
			pictures++
		}
	}
	if title != "Episode 12: Interview" {
		t.Errorf("Expected TITLE, got %q", title)
	}
	if pictures != 1 {
		t.Errorf("Expected one picture block, got %d", pictures)
	}
}

func TestTagFile_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ep.m4a")
	os.WriteFile(path, []byte("ftyp"), 0644)

	err := TagFile(path, testMetadata(), nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}
