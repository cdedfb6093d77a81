package eyetrack

import (
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/visionrig-data/pupil.report/internal/fsutil"
)

// DirSource reads an eye video stored as one image file per frame, ordered
// by file name. Frames that fail to open or decode surface as per-frame
// errors so the tracker can log them and move on.
type DirSource struct {
	fs    fsutil.FileSystem
	dir   string
	names []string
	next  int
}

// NewDirSource scans dir for image files and prepares them for sequential
// reads. Files without a known image extension are ignored.
func NewDirSource(fsys fsutil.FileSystem, dir string) (*DirSource, error) {
	all, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan frame directory %s: %w", dir, err)
	}
	var names []string
	for _, name := range all {
		switch strings.ToLower(filepath.Ext(name)) {
		case ".png", ".jpg", ".jpeg":
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no image frames found in %s", dir)
	}
	return &DirSource{fs: fsys, dir: dir, names: names}, nil
}

// Len returns the number of frame files found.
func (s *DirSource) Len() int { return len(s.names) }

// Next decodes the next frame file as grayscale. It returns io.EOF once all
// files have been consumed.
func (s *DirSource) Next() (*Frame, error) {
	if s.next >= len(s.names) {
		return nil, io.EOF
	}
	name := s.names[s.next]
	s.next++

	f, err := s.fs.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open frame %s: %w", name, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %s: %w", name, err)
	}
	return frameFromImage(img), nil
}

// frameFromImage converts any decoded image to a grayscale frame. The fast
// path reuses the pixel buffer layout of image.Gray directly.
func frameFromImage(img image.Image) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	frame := &Frame{Pix: make([]uint8, w*h), W: w, H: h}

	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			off := gray.PixOffset(b.Min.X, b.Min.Y+y)
			copy(frame.Pix[y*w:(y+1)*w], gray.Pix[off:off+w])
		}
		return frame
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// Rec. 601 luma, same weighting image/color uses.
			v := (19595*r + 38470*g + 7471*bl + 1<<15) >> 24
			frame.Pix[y*w+x] = uint8(v)
		}
	}
	return frame
}
