package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/nfnt/resize"
	"github.com/spf13/viper"
)

const (
	defaultMaxDimension = 2560
	defaultJPEGQuality  = 85
	// Quality floor for the byte-cap loop. Below this the photo looks worse
	// on a projector than just shipping a bigger file.
	minJPEGQuality = 40
)

// Transcoder re-encodes oversized uploads before they hit storage: longest
// edge capped, output bytes capped, output always JPEG. Intake treats a
// failure here as non-fatal and persists the original binary instead.
type Transcoder struct {
	MaxDimension int
	MaxBytes     int64
	Quality      int
}

func NewTranscoder() *Transcoder {
	maxDim := viper.GetInt("upload.max_dimension")
	if maxDim <= 0 {
		maxDim = defaultMaxDimension
	}

	return &Transcoder{
		MaxDimension: maxDim,
		MaxBytes:     viper.GetInt64("upload.max_encoded_size"),
		Quality:      defaultJPEGQuality,
	}
}

type TranscodeResult struct {
	Bytes       []byte
	ContentType string
	Resized     bool
}

// Process returns the bytes to persist. Input that already fits both caps
// passes through untouched, any format. Anything bigger is decoded, scaled
// to fit and re-encoded as JPEG, stepping the quality down until the byte
// cap is met or the quality floor is hit.
func (t *Transcoder) Process(data []byte, contentType string) (*TranscodeResult, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode dimensions: %v", ErrTranscodeFailed, err)
	}

	withinBytes := t.MaxBytes <= 0 || int64(len(data)) <= t.MaxBytes
	if cfg.Width <= t.MaxDimension && cfg.Height <= t.MaxDimension && withinBytes {
		return &TranscodeResult{Bytes: data, ContentType: contentType, Resized: false}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrTranscodeFailed, err)
	}

	scaled := resize.Thumbnail(uint(t.MaxDimension), uint(t.MaxDimension), img, resize.Lanczos3)

	quality := t.Quality
	if quality <= 0 {
		quality = defaultJPEGQuality
	}

	var buf bytes.Buffer
	for {
		buf.Reset()
		if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("%w: encode: %v", ErrTranscodeFailed, err)
		}

		if t.MaxBytes <= 0 || int64(buf.Len()) <= t.MaxBytes || quality <= minJPEGQuality {
			break
		}
		quality -= 10
	}

	return &TranscodeResult{
		Bytes:       buf.Bytes(),
		ContentType: "image/jpeg",
		Resized:     true,
	}, nil
}
