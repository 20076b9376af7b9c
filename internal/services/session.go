package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Lllllllleong/pdfweave/internal/deck"
)

// Session owns the working deck, the busy flag and the output file name.
// It is safe for concurrent use; the lock is never held while documents are
// parsed, rendered or assembled.
type Session struct {
	loader   *Loader
	exporter *Exporter

	mu       sync.Mutex
	deck     deck.Deck
	fileName string
	loading  bool
}

func NewSession(loader *Loader, exporter *Exporter) *Session {
	return &Session{loader: loader, exporter: exporter}
}

// Load replaces the deck with the pages of files. Only one load runs at a
// time; a failed load leaves the previous deck and file name in place.
// An empty batch changes nothing.
func (s *Session) Load(ctx context.Context, files []InputFile) error {
	if len(files) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return ErrBusy
	}
	s.loading = true
	s.mu.Unlock()

	d, err := s.loader.Load(ctx, files)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		return err
	}
	s.deck = d
	s.fileName = deck.DefaultFileName(files[0].Name)
	slog.Info("Deck loaded.", "fileCount", len(files), "pageCount", len(d))
	return nil
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Deck returns a snapshot of the current deck.
func (s *Session) Deck() deck.Deck {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deck.Clone()
}

func (s *Session) FileName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileName
}

func (s *Session) SetFileName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileName = name
}

// Reorder moves the page at from to to.
func (s *Session) Reorder(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.deck.ValidIndex(from) || !s.deck.ValidIndex(to) {
		return fmt.Errorf("%w: move %d -> %d in a deck of %d", ErrIndexOutOfRange, from, to, len(s.deck))
	}
	s.deck = deck.Reorder(s.deck, from, to)
	return nil
}

// Remove drops the page with the given id and reports whether it was present.
func (s *Session) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.deck)
	s.deck = deck.Remove(s.deck, id)
	return len(s.deck) < before
}

// Select keeps exactly the pages listed in ids, in that order. Unknown or
// repeated ids leave the deck untouched.
func (s *Session) Select(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		if keep[id] {
			return fmt.Errorf("%w: %s listed twice", ErrUnknownPage, id)
		}
		if s.deck.Index(id) < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownPage, id)
		}
		keep[id] = true
	}

	d := s.deck
	for _, id := range d.IDs() {
		if !keep[id] {
			d = deck.Remove(d, id)
		}
	}
	for target, id := range ids {
		d = deck.Reorder(d, d.Index(id), target)
	}
	s.deck = d
	return nil
}

// Export assembles the current deck and hands it to delivery. The deck is
// never modified, whether or not the export succeeds.
func (s *Session) Export(ctx context.Context, delivery Delivery) (string, error) {
	s.mu.Lock()
	d := s.deck.Clone()
	name := s.fileName
	s.mu.Unlock()

	location, err := s.exporter.Export(ctx, d, name, delivery)
	if err != nil {
		return "", err
	}
	slog.Info("Deck exported.", "pageCount", len(d), "location", location)
	return location, nil
}
