package bindery

import (
	"fmt"
	"path"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/tsawler/bindery/format"
	"github.com/tsawler/bindery/ocr"
	"github.com/tsawler/bindery/resource"
	"github.com/tsawler/bindery/section"
)

// CoverFilename is the reserved filename of the generated cover section.
const CoverFilename = "cover.xhtml"

// coverCSS styles the cover page when no stylesheet is supplied.
const coverCSS = `body {
  background-color: #FFFFFF;
  margin-bottom: 0px;
  margin-left: 0px;
  margin-right: 0px;
  margin-top: 0px;
  text-align: center;
}
img {
  max-height: 100%;
  max-width: 100%;
}`

// coverSlot records the pieces that make up the active cover.
type coverSlot struct {
	image      string // image entry name
	stylesheet string // stylesheet entry name, empty for the inline style
	filename   string
}

// detachedCover holds everything removed from the builder while a new cover
// is installed, so the old cover can be put back.
type detachedCover struct {
	slot       *coverSlot
	section    section.Removed
	image      resource.Removed
	stylesheet resource.Removed
}

// SetCover installs image as the book cover, replacing any previous cover,
// and returns the filename of the generated cover section. stylesheet may
// be empty, in which case a default inline style is used.
//
// If installing the new cover fails, the previous cover is restored, so the
// builder never ends up without the cover it had before the call.
func (b *Builder) SetCover(image, stylesheet string) (string, error) {
	const op = "set cover"

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkSource(image); err != nil {
		return "", &Error{Op: op, ID: image, Err: err}
	}
	if stylesheet != "" {
		if err := b.checkSource(stylesheet); err != nil {
			return "", &Error{Op: op, ID: stylesheet, Err: err}
		}
	}
	info, err := format.InspectImage(image)
	if err != nil {
		return "", &Error{Op: op, ID: image, Err: fmt.Errorf("%w: %v", ErrMediaTypeUnknown, err)}
	}

	old := b.detachCover()
	if err := b.installCover(image, stylesheet); err != nil {
		b.restoreCover(old)
		b.log.Debug("cover restored", zap.String("image", image), zap.Error(err))
		return "", &Error{Op: op, ID: image, Err: err}
	}

	b.log.Debug("cover replaced",
		zap.String("image", image),
		zap.String("media_type", info.MediaType),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height))
	return CoverFilename, nil
}

// RemoveCover removes the active cover, its section and its resources.
// It reports whether a cover was set.
func (b *Builder) RemoveCover() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := b.detachCover()
	if removed != nil {
		b.log.Debug("cover removed", zap.String("image", removed.slot.image))
	}
	return removed != nil
}

// Cover returns the filename of the cover section and the internal name of
// the cover image.
func (b *Builder) Cover() (filename, image string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cover == nil {
		return "", "", false
	}
	return b.cover.filename, b.cover.image, true
}

func (b *Builder) checkSource(source string) error {
	fi, err := b.opts.Stater.Stat(source)
	if err != nil || fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, source)
	}
	return nil
}

func (b *Builder) detachCover() *detachedCover {
	if b.cover == nil {
		return nil
	}

	d := &detachedCover{slot: b.cover}
	if removed, err := b.sections.Remove(b.cover.filename); err == nil {
		d.section = removed
	}
	d.image, _ = b.resources.Detach(resource.Image, b.cover.image)
	if b.cover.stylesheet != "" {
		d.stylesheet, _ = b.resources.Detach(resource.Stylesheet, b.cover.stylesheet)
	}
	b.cover = nil
	return d
}

func (b *Builder) restoreCover(d *detachedCover) {
	if d == nil {
		return
	}
	if err := b.sections.Restore(d.section); err != nil {
		b.log.Error("restoring cover section", zap.Error(err))
	}
	for _, r := range []resource.Removed{d.image, d.stylesheet} {
		if err := b.resources.Restore(r); err != nil {
			b.log.Error("restoring cover resource", zap.String("name", r.Entry.Name), zap.Error(err))
		}
	}
	b.cover = d.slot
}

// installCover registers the image and stylesheet and adds the cover
// section. On failure it undoes its own changes.
func (b *Builder) installCover(image, stylesheet string) error {
	if b.sections.Has(CoverFilename) {
		return fmt.Errorf("%w: %s", ErrFilenameExists, CoverFilename)
	}

	imgRel, err := b.resources.Register(resource.Image, image, "")
	if err != nil {
		return err
	}
	slot := &coverSlot{image: path.Base(imgRel), filename: CoverFilename}

	var cssRel string
	if stylesheet != "" {
		cssRel, err = b.resources.Register(resource.Stylesheet, stylesheet, "")
		if err != nil {
			b.resources.Remove(resource.Image, slot.image)
			return err
		}
		slot.stylesheet = path.Base(cssRel)
	}

	s := section.New(CoverFilename, "Cover", coverBody(imgRel, b.coverAlt(image)))
	if cssRel != "" {
		s.Document.AddStylesheet(cssRel)
	} else {
		s.Document.AddStyle(coverCSS)
	}

	if err := b.sections.Add("", s); err != nil {
		b.resources.Remove(resource.Image, slot.image)
		if slot.stylesheet != "" {
			b.resources.Remove(resource.Stylesheet, slot.stylesheet)
		}
		return err
	}
	b.cover = slot
	return nil
}

func coverBody(src, alt string) string {
	return fmt.Sprintf(`<div class="cover"><img src="%s" alt="%s"/></div>`,
		html.EscapeString(src), html.EscapeString(alt))
}

// coverAlt returns the OCR text of the image when a recognizer is
// configured and finds text, otherwise the book title.
func (b *Builder) coverAlt(image string) string {
	if r := b.opts.Recognizer; r != nil {
		text, err := r.RecognizeFile(image)
		if err != nil {
			b.warn("cover text recognition failed, using the title as alt text",
				zap.String("image", image), zap.Error(err))
		} else if alt := ocr.AltText(text); alt != "" {
			return alt
		}
	}
	if b.meta.Title != "" {
		return b.meta.Title
	}
	return "Cover"
}
