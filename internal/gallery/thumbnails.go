package gallery

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/imageio"
)

// Thumbnails stores downscaled JPEG profile pictures.
type Thumbnails struct {
	dir     string
	size    int
	quality int
	now     func() time.Time
}

// NewThumbnails creates the directory if needed.
func NewThumbnails(dir string) (*Thumbnails, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating image directory: %w", err)
	}
	return &Thumbnails{
		dir:     dir,
		size:    constants.ThumbnailSize,
		quality: constants.StoredJPEGQuality,
		now:     time.Now,
	}, nil
}

// Save writes a thumbnail of img for identityID and returns its path.
func (t *Thumbnails) Save(ctx context.Context, identityID string, img *image.RGBA) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := imageio.EncodeJPEG(imageio.Thumbnail(img, t.size), t.quality)
	if err != nil {
		return "", err
	}
	path := filepath.Join(t.dir, timestampedName(identityID, t.now(), ".jpg"))
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing thumbnail: %w", err)
	}
	return path, nil
}
