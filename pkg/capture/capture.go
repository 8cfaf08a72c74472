// Package capture takes high-resolution screenshots of a 3D viewport: the
// viewport is resized to the requested resolution, rendered, written as PNG
// and then put back the way it was.
package capture

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"

	"slicermorph/internal/logger"
)

// ErrInvalidRequest indicates a capture request that cannot be run as given.
var ErrInvalidRequest = errors.New("capture: invalid request")

// MaxDimension bounds each side of a capture
const MaxDimension = 16384

// Viewport is the rendering collaborator being captured
type Viewport interface {
	Size() (width, height int)
	Resize(width, height int) error
	Render() (image.Image, error)
}

// StateSaver is implemented by viewports that can snapshot more than their
// size (camera, layout). The returned function restores the snapshot.
type StateSaver interface {
	SaveState() func()
}

// Request describes one capture
type Request struct {
	Directory string
	Filename  string
	Width     int
	Height    int
}

// Path is the output file path
func (r Request) Path() string {
	return filepath.Join(r.Directory, strings.TrimSpace(r.Filename))
}

// Validate checks the request before anything touches the viewport
func (r Request) Validate() error {
	name := strings.TrimSpace(r.Filename)
	switch {
	case name == "":
		return errors.Wrap(ErrInvalidRequest, "filename is empty")
	case !strings.HasSuffix(name, ".png"):
		return errors.Wrapf(ErrInvalidRequest, "filename %q must end with .png", name)
	case strings.TrimSpace(r.Directory) == "":
		return errors.Wrap(ErrInvalidRequest, "output directory is empty")
	case r.Width <= 0 || r.Height <= 0:
		return errors.Wrapf(ErrInvalidRequest, "resolution %dx%d must be positive", r.Width, r.Height)
	case r.Width > MaxDimension || r.Height > MaxDimension:
		return errors.Wrapf(ErrInvalidRequest, "resolution %dx%d exceeds %d", r.Width, r.Height, MaxDimension)
	}
	return nil
}

// Capturer runs capture requests against a viewport
type Capturer struct {
	viewport Viewport
	log      logger.ILogger
}

// NewCapturer creates a capturer for viewport
func NewCapturer(viewport Viewport, log logger.ILogger) *Capturer {
	if log == nil {
		log = &logger.NullLogger{}
	}
	return &Capturer{viewport: viewport, log: log}
}

// Capture renders the viewport at the requested resolution and writes a PNG.
// The viewport's size, and any state it can save, is restored afterwards even
// when rendering fails.
func (c *Capturer) Capture(req Request) (err error) {
	if err := req.Validate(); err != nil {
		return err
	}

	if saver, ok := c.viewport.(StateSaver); ok {
		defer saver.SaveState()()
	}
	origW, origH := c.viewport.Size()
	c.log.Debugf("Viewport size before capture: %dx%d", origW, origH)
	defer func() {
		if rerr := c.viewport.Resize(origW, origH); rerr != nil && err == nil {
			err = errors.Wrap(rerr, "failed to restore viewport size")
		}
	}()

	if err := c.viewport.Resize(req.Width, req.Height); err != nil {
		return errors.Wrapf(err, "failed to resize viewport to %dx%d", req.Width, req.Height)
	}
	img, err := c.viewport.Render()
	if err != nil {
		return errors.Wrap(err, "failed to render viewport")
	}

	// Some renderers clamp to the screen; resample to the exact request
	if b := img.Bounds(); b.Dx() != req.Width || b.Dy() != req.Height {
		c.log.Warnf("Renderer produced %dx%d, resampling to %dx%d", b.Dx(), b.Dy(), req.Width, req.Height)
		img = resample(img, req.Width, req.Height)
	}

	if err := writePNG(req.Path(), img); err != nil {
		return err
	}
	c.log.Infof("Capture saved to %s (%dx%d)", req.Path(), req.Width, req.Height)
	return nil
}

func resample(src image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	return file.Close()
}
