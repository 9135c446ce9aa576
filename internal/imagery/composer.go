package imagery

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/bark-labs/offerbot/internal/model"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
)

const (
	qrModulePixels    = 15
	backgroundOpacity = 60
)

var qrOffset = image.Pt(350, 350)

// Backgrounds resolves an offer's promotional background.
type Backgrounds interface {
	Load(ctx context.Context, path string) (image.Image, error)
}

// Composer renders the redemption image: the QR code of the code pasted on
// a faded copy of the offer background under a decorative layer.
type Composer struct {
	backgrounds Backgrounds
	overlay     image.Image
}

// NewComposer builds a Composer. overlay may be nil.
func NewComposer(backgrounds Backgrounds, overlay image.Image) *Composer {
	return &Composer{backgrounds: backgrounds, overlay: overlay}
}

// LoadOverlay decodes the decorative layer from disk.
func LoadOverlay(path string) (image.Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read overlay: %v", ErrAssetUnavailable, err)
	}
	return decode(raw, path)
}

// Compose returns PNG bytes sized like the offer's background.
func (c *Composer) Compose(ctx context.Context, code string, offer *model.Offer) ([]byte, error) {
	qr, err := qrcode.New(code, qrcode.High)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	qr.DisableBorder = true
	symbol := qr.Image(-qrModulePixels)

	bg, err := c.backgrounds.Load(ctx, offer.PromoImagePath)
	if err != nil {
		return nil, err
	}
	b := bg.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	fill := image.NewUniform(bg.At(b.Min.X, b.Min.Y))
	draw.Draw(canvas, canvas.Bounds(), fill, image.Point{}, draw.Src)
	draw.DrawMask(canvas, canvas.Bounds(), bg, b.Min, image.NewUniform(color.Alpha{A: backgroundOpacity}), image.Point{}, draw.Over)

	if c.overlay != nil {
		ob := c.overlay.Bounds()
		if ob.Dx() == b.Dx() && ob.Dy() == b.Dy() {
			draw.Draw(canvas, canvas.Bounds(), c.overlay, ob.Min, draw.Over)
		} else {
			draw.CatmullRom.Scale(canvas, canvas.Bounds(), c.overlay, ob, draw.Over, nil)
		}
	}

	sb := symbol.Bounds()
	draw.Draw(canvas, sb.Sub(sb.Min).Add(qrOffset), symbol, sb.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
