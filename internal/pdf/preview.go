package pdf

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/Lllllllleong/pdfweave/internal/deck"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	frameColor = color.Gray{Y: 0xb0}
	labelColor = color.Gray{Y: 0x40}
)

// Rasterizer renders page cards: an image with the page's proportions,
// framed and labelled with its page number and size.
type Rasterizer struct{}

func NewRasterizer() *Rasterizer { return &Rasterizer{} }

func (r *Rasterizer) Open(data []byte) (deck.RasterDocument, error) {
	ctx, err := readContext(data)
	if err != nil {
		return nil, err
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}
	return &rasterDocument{dims: dims}, nil
}

type rasterDocument struct {
	dims []types.Dim
}

func (d *rasterDocument) PageCount() int { return len(d.dims) }

// RenderPage renders page pageNumber (1-based). At scale 1 one PDF point maps
// to one pixel.
func (d *rasterDocument) RenderPage(pageNumber int, scale float64) (image.Image, error) {
	if pageNumber < 1 || pageNumber > len(d.dims) {
		return nil, fmt.Errorf("page %d out of range (%d pages)", pageNumber, len(d.dims))
	}
	if scale <= 0 {
		return nil, fmt.Errorf("invalid scale %v", scale)
	}
	dim := d.dims[pageNumber-1]
	w := max(1, int(math.Round(dim.Width*scale)))
	h := max(1, int(math.Round(dim.Height*scale)))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	drawFrame(img)

	face := basicfont.Face7x13
	lines := []string{
		fmt.Sprintf("Page %d", pageNumber),
		fmt.Sprintf("%.0f x %.0f pt", dim.Width, dim.Height),
	}
	lineHeight := face.Metrics().Height.Ceil()
	y := h/2 - lineHeight*len(lines)/2 + face.Metrics().Ascent.Ceil()
	for _, line := range lines {
		drawer := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(labelColor),
			Face: face,
		}
		x := (w - drawer.MeasureString(line).Round()) / 2
		drawer.Dot = fixed.P(x, y)
		drawer.DrawString(line)
		y += lineHeight
	}
	return img, nil
}

func drawFrame(img *image.RGBA) {
	b := img.Bounds()
	src := image.NewUniform(frameColor)
	edges := []image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+1),
		image.Rect(b.Min.X, b.Max.Y-1, b.Max.X, b.Max.Y),
		image.Rect(b.Min.X, b.Min.Y, b.Min.X+1, b.Max.Y),
		image.Rect(b.Max.X-1, b.Min.Y, b.Max.X, b.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e, src, image.Point{}, draw.Src)
	}
}
