package deck

import (
	"image"
	"io"
)

// Source is a parsed source document kept alive for copy-on-export.
type Source interface {
	Name() string
	PageCount() int
}

// Parser turns raw PDF bytes into a Source.
type Parser interface {
	Parse(name string, data []byte) (Source, error)
}

// RasterDocument is a transient document used to enumerate and render pages.
type RasterDocument interface {
	PageCount() int
	RenderPage(pageNumber int, scale float64) (image.Image, error)
}

// Rasterizer opens raw PDF bytes for preview rendering.
type Rasterizer interface {
	Open(data []byte) (RasterDocument, error)
}

// CopiedPage is a page copied out of a Source, ready to be appended to the
// Output it was copied for.
type CopiedPage any

// Output is a document under assembly.
type Output interface {
	CopyPage(src Source, pageIndex int) (CopiedPage, error)
	AppendPage(page CopiedPage) error
	PageCount() int
	Serialize(w io.Writer) error
}

// Writer creates empty output documents.
type Writer interface {
	CreateEmpty() Output
}
