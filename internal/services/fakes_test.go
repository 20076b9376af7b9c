package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/Lllllllleong/pdfweave/internal/deck"
	"github.com/Lllllllleong/pdfweave/internal/models"
)

// Fake documents are encoded as "pages:N"; anything else fails to parse.

func fakePDF(pages int) []byte { return []byte(fmt.Sprintf("pages:%d", pages)) }

func fakePageCount(data []byte) (int, error) {
	s, ok := strings.CutPrefix(string(data), "pages:")
	if !ok {
		return 0, errors.New("not a PDF")
	}
	return strconv.Atoi(s)
}

type fakeSource struct {
	name  string
	pages int
}

func (s *fakeSource) Name() string   { return s.name }
func (s *fakeSource) PageCount() int { return s.pages }

type fakeParser struct{}

func (fakeParser) Parse(name string, data []byte) (deck.Source, error) {
	n, err := fakePageCount(data)
	if err != nil {
		return nil, err
	}
	return &fakeSource{name: name, pages: n}, nil
}

type fakeRasterizer struct {
	failPage int           // render fails for this page number when > 0
	gate     chan struct{} // when set, each render waits for a receive
	extra    int           // pages reported beyond the real count
}

func (r *fakeRasterizer) Open(data []byte) (deck.RasterDocument, error) {
	n, err := fakePageCount(data)
	if err != nil {
		return nil, err
	}
	return &fakeRaster{r: r, pages: n + r.extra}, nil
}

type fakeRaster struct {
	r     *fakeRasterizer
	pages int
}

func (d *fakeRaster) PageCount() int { return d.pages }

func (d *fakeRaster) RenderPage(pageNumber int, scale float64) (image.Image, error) {
	if d.r.gate != nil {
		<-d.r.gate
	}
	if pageNumber == d.r.failPage {
		return nil, errors.New("render failed")
	}
	return image.NewGray(image.Rect(0, 0, 4, 6)), nil
}

type pageRef struct {
	source string
	index  int
}

// fakeWriter records which pages each output received, in order.
type fakeWriter struct {
	failCopy  string // source name whose copies fail
	serialize error
	outputs   []*fakeOutput
}

func (w *fakeWriter) CreateEmpty() deck.Output {
	o := &fakeOutput{w: w}
	w.outputs = append(w.outputs, o)
	return o
}

type fakeOutput struct {
	w     *fakeWriter
	pages []pageRef
}

func (o *fakeOutput) CopyPage(src deck.Source, pageIndex int) (deck.CopiedPage, error) {
	if src.Name() == o.w.failCopy {
		return nil, errors.New("copy failed")
	}
	return pageRef{source: src.Name(), index: pageIndex}, nil
}

func (o *fakeOutput) AppendPage(page deck.CopiedPage) error {
	o.pages = append(o.pages, page.(pageRef))
	return nil
}

func (o *fakeOutput) PageCount() int { return len(o.pages) }

func (o *fakeOutput) Serialize(w io.Writer) error {
	if o.w.serialize != nil {
		return o.w.serialize
	}
	_, err := fmt.Fprint(w, o.pages)
	return err
}

type recordingDelivery struct {
	calls int
	name  string
	data  []byte
	err   error
}

func (d *recordingDelivery) Deliver(_ context.Context, fileName string, data []byte) (string, error) {
	d.calls++
	if d.err != nil {
		return "", d.err
	}
	d.name = fileName
	d.data = data
	return "mem://" + fileName, nil
}

func newFakeSession(r *fakeRasterizer, w *fakeWriter) *Session {
	return NewSession(NewLoader(fakeParser{}, r, 1), NewExporter(w))
}

// fakeLedger keeps export records in memory, keyed by id in creation order.
type fakeLedger struct {
	ids     []string
	records map[string]*models.ExportRecord
}

func (l *fakeLedger) add(rec models.ExportRecord) string {
	if l.records == nil {
		l.records = map[string]*models.ExportRecord{}
	}
	id := fmt.Sprintf("export-%d", len(l.ids)+1)
	l.ids = append(l.ids, id)
	l.records[id] = &rec
	return id
}

func (l *fakeLedger) FindActive(_ context.Context, manifestHash string) (string, error) {
	for _, id := range l.ids {
		rec := l.records[id]
		if rec.ManifestHash == manifestHash && slices.Contains(models.ActiveExportStatuses, rec.Status) {
			return id, nil
		}
	}
	return "", nil
}

func (l *fakeLedger) Create(_ context.Context, rec models.ExportRecord) (string, error) {
	return l.add(rec), nil
}

func (l *fakeLedger) Complete(_ context.Context, id string, res ExportResult) error {
	rec := l.records[id]
	rec.Status = models.ExportStatusComplete
	rec.OutputURI = res.OutputURI
	rec.FileName = res.FileName
	rec.PageCount = res.PageCount
	rec.SourceObjects = res.SourceObjects
	rec.WorkflowExecutionID = res.WorkflowExecutionID
	return nil
}

func (l *fakeLedger) Fail(_ context.Context, id, details string) error {
	rec := l.records[id]
	rec.Status = models.ExportStatusFailed
	rec.ErrorDetails = details
	return nil
}
