package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func loadedSession(t *testing.T, w *fakeWriter) *Session {
	t.Helper()
	s := newFakeSession(&fakeRasterizer{}, w)
	err := s.Load(context.Background(), []InputFile{
		{Name: "F1.pdf", Data: fakePDF(1)},
		{Name: "F2.pdf", Data: fakePDF(2)},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func TestSessionLoadSetsDeckAndName(t *testing.T) {
	s := loadedSession(t, &fakeWriter{})
	if got := len(s.Deck()); got != 3 {
		t.Fatalf("deck length = %d, want 3", got)
	}
	if s.FileName() != "F1 (edited)" {
		t.Fatalf("file name = %q", s.FileName())
	}
	if s.Busy() {
		t.Fatalf("still busy after load")
	}
}

func TestSessionLoadReplacesDeck(t *testing.T) {
	s := loadedSession(t, &fakeWriter{})
	if err := s.Load(context.Background(), []InputFile{{Name: "other.pdf", Data: fakePDF(1)}}); err != nil {
		t.Fatal(err)
	}
	if ids := s.Deck().IDs(); !reflect.DeepEqual(ids, []string{"file-0-page-1"}) {
		t.Fatalf("deck = %v", ids)
	}
	if s.FileName() != "other (edited)" {
		t.Fatalf("file name = %q", s.FileName())
	}
}

func TestSessionEmptyBatchIsNoop(t *testing.T) {
	s := loadedSession(t, &fakeWriter{})
	if err := s.Load(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(s.Deck()) != 3 {
		t.Fatalf("empty batch changed the deck")
	}
}

func TestSessionFailedLoadKeepsPreviousState(t *testing.T) {
	s := loadedSession(t, &fakeWriter{})
	before := s.Deck().IDs()
	s.SetFileName("keep me")

	err := s.Load(context.Background(), []InputFile{{Name: "bad.pdf", Data: []byte("nope")}})
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("err = %v, want LoadError", err)
	}
	if !reflect.DeepEqual(s.Deck().IDs(), before) || s.FileName() != "keep me" {
		t.Fatalf("state changed after failed load")
	}
	if s.Busy() {
		t.Fatalf("busy flag not cleared after failure")
	}
}

func TestSessionRejectsOverlappingLoads(t *testing.T) {
	gate := make(chan struct{})
	s := newFakeSession(&fakeRasterizer{gate: gate}, &fakeWriter{})

	done := make(chan error, 1)
	go func() {
		done <- s.Load(context.Background(), []InputFile{{Name: "slow.pdf", Data: fakePDF(1)}})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !s.Busy() {
		if time.Now().After(deadline) {
			t.Fatalf("session never became busy")
		}
		time.Sleep(time.Millisecond)
	}

	if err := s.Load(context.Background(), []InputFile{{Name: "b.pdf", Data: fakePDF(1)}}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second load err = %v, want ErrBusy", err)
	}

	gate <- struct{}{}
	if err := <-done; err != nil {
		t.Fatalf("first load: %v", err)
	}
	if s.Busy() {
		t.Fatalf("still busy")
	}
	if ids := s.Deck().IDs(); !reflect.DeepEqual(ids, []string{"file-0-page-1"}) {
		t.Fatalf("deck = %v", ids)
	}
}

func TestSessionReorder(t *testing.T) {
	s := loadedSession(t, &fakeWriter{})
	if err := s.Reorder(2, 0); err != nil {
		t.Fatal(err)
	}
	want := []string{"file-1-page-2", "file-0-page-1", "file-1-page-1"}
	if ids := s.Deck().IDs(); !reflect.DeepEqual(ids, want) {
		t.Fatalf("deck = %v, want %v", ids, want)
	}
	for _, bad := range [][2]int{{-1, 0}, {0, 3}, {5, 1}} {
		if err := s.Reorder(bad[0], bad[1]); !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("Reorder(%d,%d) err = %v", bad[0], bad[1], err)
		}
	}
	if ids := s.Deck().IDs(); !reflect.DeepEqual(ids, want) {
		t.Fatalf("rejected reorder changed the deck: %v", ids)
	}
}

func TestSessionRemoveAndExport(t *testing.T) {
	w := &fakeWriter{}
	s := loadedSession(t, w)

	if s.Remove("missing") {
		t.Fatalf("Remove(missing) reported a removal")
	}
	if !s.Remove("file-1-page-1") {
		t.Fatalf("Remove did not find page")
	}

	delivery := &recordingDelivery{}
	if _, err := s.Export(context.Background(), delivery); err != nil {
		t.Fatalf("Export: %v", err)
	}
	want := []pageRef{{"F1.pdf", 0}, {"F2.pdf", 1}}
	if got := w.outputs[0].pages; !reflect.DeepEqual(got, want) {
		t.Fatalf("exported %v, want %v", got, want)
	}
	if delivery.name != "F1 (edited).pdf" {
		t.Fatalf("delivered as %q", delivery.name)
	}
	if len(s.Deck()) != 2 {
		t.Fatalf("export changed the deck")
	}
}

func TestSessionExportFailureLeavesDeck(t *testing.T) {
	s := loadedSession(t, &fakeWriter{failCopy: "F2.pdf"})
	before := s.Deck().IDs()
	delivery := &recordingDelivery{}
	if _, err := s.Export(context.Background(), delivery); err == nil {
		t.Fatalf("expected export failure")
	}
	if delivery.calls != 0 || !reflect.DeepEqual(s.Deck().IDs(), before) {
		t.Fatalf("failed export delivered output or changed the deck")
	}
}

func TestSessionExportAfterRemovingOnlyPage(t *testing.T) {
	s := newFakeSession(&fakeRasterizer{}, &fakeWriter{})
	if err := s.Load(context.Background(), []InputFile{{Name: "one.pdf", Data: fakePDF(1)}}); err != nil {
		t.Fatal(err)
	}
	s.Remove("file-0-page-1")
	if len(s.Deck()) != 0 {
		t.Fatalf("deck not empty")
	}
	delivery := &recordingDelivery{}
	if _, err := s.Export(context.Background(), delivery); !errors.Is(err, ErrEmptyDeck) {
		t.Fatalf("err = %v, want ErrEmptyDeck", err)
	}
	if delivery.calls != 0 {
		t.Fatalf("empty deck was delivered")
	}
}

func TestSessionSelect(t *testing.T) {
	s := loadedSession(t, &fakeWriter{})
	if err := s.Select([]string{"file-1-page-2", "file-0-page-1"}); err != nil {
		t.Fatal(err)
	}
	want := []string{"file-1-page-2", "file-0-page-1"}
	if ids := s.Deck().IDs(); !reflect.DeepEqual(ids, want) {
		t.Fatalf("deck = %v, want %v", ids, want)
	}

	for _, ids := range [][]string{{"nope"}, {"file-0-page-1", "file-0-page-1"}} {
		if err := s.Select(ids); !errors.Is(err, ErrUnknownPage) {
			t.Fatalf("Select(%v) err = %v", ids, err)
		}
	}
	if got := s.Deck().IDs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("rejected selection changed the deck: %v", got)
	}
}
