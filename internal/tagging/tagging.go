package tagging

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"

	"github.com/cesargomez89/adfreecast/internal/constants"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

const vendor = "adfreecast"

// Metadata is what gets written into a processed episode file.
type Metadata struct {
	Title       string
	Podcast     string
	Artist      string
	Description string
	// PublishDate is the canonical publish timestamp; only the date part is written.
	PublishDate string
	Genre       string
	URL         string
}

func (m Metadata) date() string {
	if len(m.PublishDate) >= 10 {
		return m.PublishDate[:10]
	}
	return m.PublishDate
}

// TagFile writes metadata tags to the audio file at filePath.
func TagFile(filePath string, md Metadata, artData []byte) error {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case constants.ExtFLAC:
		return tagFLAC(filePath, md, artData)
	case constants.ExtMP3:
		return tagMP3(filePath, md, artData)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// tagFLAC replaces the Vorbis comment and picture blocks of a FLAC file.
// Audio frames are copied through untouched.
func tagFLAC(filePath string, md Metadata, artData []byte) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read FLAC file: %w", err)
	}

	f, err := flac.ParseBytes(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to parse FLAC file: %w", err)
	}

	var kept []*flac.MetaDataBlock
	for _, block := range f.Meta {
		switch block.Type {
		case flac.VorbisComment, flac.Picture, flac.Padding:
			continue
		}
		kept = append(kept, block)
	}

	cmt := newVorbisComment(md)
	cmtBlock := cmt.Marshal()
	kept = append(kept, &cmtBlock)

	if len(artData) > 0 {
		pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front Cover", artData, detectMIME(artData))
		if err == nil {
			picBlock := pic.Marshal()
			kept = append(kept, &picBlock)
		}
	}
	f.Meta = kept

	return writeAtomic(filePath, f.Marshal())
}

func newVorbisComment(md Metadata) *flacvorbis.MetaDataBlockVorbisComment {
	vc := &flacvorbis.MetaDataBlockVorbisComment{Vendor: vendor}

	addTag := func(name, value string) {
		if value != "" {
			vc.Comments = append(vc.Comments, name+"="+value)
		}
	}

	addTag("TITLE", md.Title)
	addTag("ARTIST", md.Artist)
	addTag("ALBUM", md.Podcast)
	addTag("ALBUMARTIST", md.Artist)
	addTag("DATE", md.date())
	addTag("GENRE", md.Genre)
	addTag("DESCRIPTION", md.Description)
	addTag("URL", md.URL)

	return vc
}

// tagMP3 writes ID3v2.4 tags to an MP3 file.
func tagMP3(filePath string, md Metadata, artData []byte) error {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	if md.Title != "" {
		tag.SetTitle(md.Title)
	}
	if md.Artist != "" {
		tag.SetArtist(md.Artist)
		tag.AddTextFrame(tag.CommonID("Band/Orchestra/Accompaniment"), tag.DefaultEncoding(), md.Artist)
	}
	if md.Podcast != "" {
		tag.SetAlbum(md.Podcast)
	}
	// v2.4 stores the year as TDRC, which takes a full date.
	if date := md.date(); date != "" {
		tag.SetYear(date)
	}
	if md.Genre != "" {
		tag.SetGenre(md.Genre)
	}
	if md.Description != "" {
		tag.DeleteFrames(tag.CommonID("Comments"))
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: "",
			Text:        md.Description,
		})
	}
	if md.URL != "" {
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: "URL",
			Value:       md.URL,
		})
	}

	if len(artData) > 0 {
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    detectMIME(artData),
			PictureType: id3v2.PTFrontCover,
			Description: "Front Cover",
			Picture:     artData,
		})
	}

	return tag.Save()
}

// detectMIME sniffs image bytes so PNG covers aren't labelled as image/jpeg.
func detectMIME(data []byte) string {
	mime := http.DetectContentType(data)
	if idx := strings.Index(mime, ";"); idx != -1 {
		mime = strings.TrimSpace(mime[:idx])
	}
	if mime == constants.MimeTypePNG {
		return constants.MimeTypePNG
	}
	return constants.MimeTypeJPEG
}

func writeAtomic(filePath string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(filePath), "*.tag.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write tagged file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, constants.FilePermissions); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace original file: %w", err)
	}
	return nil
}
