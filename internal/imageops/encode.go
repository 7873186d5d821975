package imageops

import (
	"bytes"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// EncodedFile is an in-memory encoded image ready to be handed to a storage
// backend or written to an HTTP response.
type EncodedFile struct {
	Name        string
	Format      imaging.Format
	ContentType string
	Data        []byte
}

// Reader returns a reader over the encoded bytes.
func (f *EncodedFile) Reader() io.Reader {
	return bytes.NewReader(f.Data)
}

// Size returns the encoded length in bytes.
func (f *EncodedFile) Size() int {
	return len(f.Data)
}

// EncodeFile encodes img in the given format and labels the result with name.
func EncodeFile(img image.Image, name string, format imaging.Format) (*EncodedFile, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "encode", Err: errNilImage}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return nil, &ImageProcessingError{Operation: "encode", Err: err}
	}
	return &EncodedFile{
		Name:        name,
		Format:      format,
		ContentType: ContentTypeFor(format),
		Data:        buf.Bytes(),
	}, nil
}
