// Package deck holds the working page deck: the ordered list of pages drawn
// from one or more loaded PDFs, and the pure operations that rearrange it.
package deck

import (
	"fmt"
	"strings"
)

// PageRecord represents one page in the working deck.
// Every field is fixed once the record is created; only its position in a
// Deck changes.
type PageRecord struct {
	ID                 string
	Source             Source // shared by every record cut from the same file
	SourcePageIndex    int    // zero-based
	Preview            []byte // PNG, display only
	OriginalFileName   string
	OriginalPageNumber int // 1-based
}

// Deck is the ordered sequence of pages. Order is both display and export order.
type Deck []PageRecord

// PageID returns the id of page pageNumber (1-based) of the file at position
// filePos (0-based) in a load batch.
func PageID(filePos, pageNumber int) string {
	return fmt.Sprintf("file-%d-page-%d", filePos, pageNumber)
}

// Reorder moves the record at from to to, shifting the records in between by
// one. Both indices must be valid positions in d; see ValidIndex.
func Reorder(d Deck, from, to int) Deck {
	out := make(Deck, 0, len(d))
	moved := d[from]
	for i, r := range d {
		if i == from {
			continue
		}
		out = append(out, r)
	}
	out = append(out, PageRecord{})
	copy(out[to+1:], out[to:])
	out[to] = moved
	return out
}

// Remove returns d without the record whose ID is id.
// An unknown id yields an unchanged copy.
func Remove(d Deck, id string) Deck {
	out := make(Deck, 0, len(d))
	for _, r := range d {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// ValidIndex reports whether i is a position in d.
func (d Deck) ValidIndex(i int) bool {
	return i >= 0 && i < len(d)
}

// Index returns the position of the record with the given id, or -1.
func (d Deck) Index(id string) int {
	for i, r := range d {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// IDs lists the record ids in deck order.
func (d Deck) IDs() []string {
	ids := make([]string, len(d))
	for i, r := range d {
		ids[i] = r.ID
	}
	return ids
}

// Clone returns a shallow copy; records share their Source and Preview.
func (d Deck) Clone() Deck {
	if d == nil {
		return nil
	}
	out := make(Deck, len(d))
	copy(out, d)
	return out
}

// DefaultFileName derives the output name offered after a load: the first
// file's name up to its first dot, marked as edited.
func DefaultFileName(firstFileName string) string {
	base, _, _ := strings.Cut(firstFileName, ".")
	return base + " (edited)"
}
