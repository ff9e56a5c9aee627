package export

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/bogem/id3v2/v2"
	"github.com/gabriel-vasile/mimetype"
)

const downloadComment = "Downloaded from Audio Library"

// TagInfo is what a downloaded track is labelled with.
type TagInfo struct {
	Title  string
	Artist string
	Album  string
	Year   int
	Cover  []byte
}

// TagMP3 replaces any ID3v2 tag on audio with one built from info.
func TagMP3(audio []byte, info TagInfo) ([]byte, error) {
	tag := id3v2.NewEmptyTag()
	tag.SetVersion(3)
	tag.SetDefaultEncoding(id3v2.EncodingUTF16)

	tag.SetTitle(info.Title)
	if info.Artist != "" {
		tag.SetArtist(info.Artist)
	}
	if info.Album != "" {
		tag.SetAlbum(info.Album)
	}
	if info.Year > 0 {
		tag.SetYear(strconv.Itoa(info.Year))
	}
	tag.AddCommentFrame(id3v2.CommentFrame{
		Encoding:    id3v2.EncodingUTF16,
		Language:    "eng",
		Description: "Comment",
		Text:        downloadComment,
	})
	if len(info.Cover) > 0 {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF16,
			MimeType:    mimetype.Detect(info.Cover).String(),
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     info.Cover,
		})
	}

	body, err := stripID3v2(audio)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if _, err := tag.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("write id3 tag: %w", err)
	}
	out.Write(body)
	return out.Bytes(), nil
}

// stripID3v2 returns audio without its leading ID3v2 tag, if any.
func stripID3v2(data []byte) ([]byte, error) {
	if len(data) < 10 || string(data[:3]) != "ID3" {
		return data, nil
	}
	// tag size is a synchsafe integer: 7 bits per byte
	size := int(data[6])<<21 | int(data[7])<<14 | int(data[8])<<7 | int(data[9])
	tagSize := size + 10
	if data[5]&0x10 != 0 {
		tagSize += 10
	}
	if tagSize > len(data) {
		return nil, fmt.Errorf("id3 tag size %d exceeds file size %d", tagSize, len(data))
	}
	return data[tagSize:], nil
}
