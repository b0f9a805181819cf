package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitepipe/internal/taskgraph"
)

// JPEGQuality is the quality JPEG images are re-encoded at.
const JPEGQuality = 95

// Images re-encodes PNG and JPEG images and keeps whichever of the original
// and the re-encoded file is smaller. Other files are copied verbatim.
func Images(p Paths) taskgraph.Transform {
	return taskgraph.TransformFunc(func(ctx context.Context, sources []string) ([]string, error) {
		outputs := make([]string, 0, len(sources))
		for _, src := range sources {
			if err := ctx.Err(); err != nil {
				return outputs, err
			}

			target, err := p.groupOutput(p.Images, src)
			if err != nil {
				return outputs, err
			}
			data, err := os.ReadFile(src)
			if err != nil {
				return outputs, fmt.Errorf("reading %s: %w", src, err)
			}
			optimized, err := OptimizeImage(filepath.Ext(src), data)
			if err != nil {
				return outputs, fmt.Errorf("optimizing %s: %w", src, err)
			}
			if err := writeFile(target, optimized); err != nil {
				return outputs, err
			}
			outputs = append(outputs, target)
		}
		return outputs, nil
	})
}

// OptimizeImage returns the smaller of data and its re-encoding. ext
// selects the codec; unknown extensions return data unchanged.
func OptimizeImage(ext string, data []byte) ([]byte, error) {
	var encode func(*bytes.Buffer, image.Image) error
	var decode func([]byte) (image.Image, error)

	switch strings.ToLower(ext) {
	case ".png":
		decode = func(b []byte) (image.Image, error) { return png.Decode(bytes.NewReader(b)) }
		encode = func(w *bytes.Buffer, img image.Image) error {
			enc := png.Encoder{CompressionLevel: png.BestCompression}
			return enc.Encode(w, img)
		}
	case ".jpg", ".jpeg":
		decode = func(b []byte) (image.Image, error) { return jpeg.Decode(bytes.NewReader(b)) }
		encode = func(w *bytes.Buffer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
		}
	default:
		return data, nil
	}

	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		return nil, err
	}
	if buf.Len() < len(data) {
		return buf.Bytes(), nil
	}
	return data, nil
}
