package services

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"reflect"
	"testing"
)

func TestLoadExpandsFilesInOrder(t *testing.T) {
	l := NewLoader(fakeParser{}, &fakeRasterizer{}, 1)
	d, err := l.Load(context.Background(), []InputFile{
		{Name: "F1.pdf", Data: fakePDF(1)},
		{Name: "F2.pdf", Data: fakePDF(2)},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	wantIDs := []string{"file-0-page-1", "file-1-page-1", "file-1-page-2"}
	if !reflect.DeepEqual(d.IDs(), wantIDs) {
		t.Fatalf("ids = %v, want %v", d.IDs(), wantIDs)
	}
	wantNames := []string{"F1.pdf", "F2.pdf", "F2.pdf"}
	wantNumbers := []int{1, 1, 2}
	for i, rec := range d {
		if rec.OriginalFileName != wantNames[i] || rec.OriginalPageNumber != wantNumbers[i] {
			t.Errorf("record %d = %s p%d", i, rec.OriginalFileName, rec.OriginalPageNumber)
		}
		if rec.SourcePageIndex != rec.OriginalPageNumber-1 {
			t.Errorf("record %d source index %d", i, rec.SourcePageIndex)
		}
		if _, err := png.Decode(bytes.NewReader(rec.Preview)); err != nil {
			t.Errorf("record %d preview is not a PNG: %v", i, err)
		}
	}
	if d[1].Source != d[2].Source {
		t.Errorf("pages of one file should share their source")
	}
	if d[0].Source == d[1].Source {
		t.Errorf("pages of different files share a source")
	}
}

func TestLoadFailures(t *testing.T) {
	cases := []struct {
		name     string
		r        *fakeRasterizer
		files    []InputFile
		wantFile string
		wantPage int
	}{
		{
			name:     "corrupt file",
			r:        &fakeRasterizer{},
			files:    []InputFile{{Name: "ok.pdf", Data: fakePDF(2)}, {Name: "bad.pdf", Data: []byte("garbage")}},
			wantFile: "bad.pdf",
		},
		{
			name:     "render failure",
			r:        &fakeRasterizer{failPage: 2},
			files:    []InputFile{{Name: "a.pdf", Data: fakePDF(3)}},
			wantFile: "a.pdf",
			wantPage: 2,
		},
		{
			name:     "page count mismatch",
			r:        &fakeRasterizer{extra: 1},
			files:    []InputFile{{Name: "a.pdf", Data: fakePDF(1)}},
			wantFile: "a.pdf",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := NewLoader(fakeParser{}, tc.r, 1).Load(context.Background(), tc.files)
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("err = %v, want LoadError", err)
			}
			if loadErr.File != tc.wantFile || loadErr.Page != tc.wantPage {
				t.Fatalf("LoadError = %+v", loadErr)
			}
			if d != nil {
				t.Fatalf("partial deck returned: %v", d.IDs())
			}
		})
	}
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader(fakeParser{}, &fakeRasterizer{}, 1).Load(ctx, []InputFile{{Name: "a.pdf", Data: fakePDF(1)}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
