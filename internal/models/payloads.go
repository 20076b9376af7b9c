package models

// These structs define the JSON payloads exchanged with the page-deck HTTP
// functions and the manifests read by the pdf-assembler.

// PageView is one deck entry as shown to the client.
type PageView struct {
	Index              int    `json:"index"`
	ID                 string `json:"id"`
	OriginalFileName   string `json:"originalFileName"`
	OriginalPageNumber int    `json:"originalPageNumber"`
	Preview            string `json:"preview,omitempty"` // data:image/png;base64 URL
}

// DeckResponse is returned by every page-deck function that does not stream a PDF.
type DeckResponse struct {
	Busy     bool       `json:"busy"`
	FileName string     `json:"fileName"`
	Pages    []PageView `json:"pages"`
	Removed  *bool      `json:"removed,omitempty"`
}

// ReorderRequest carries the indices reported by the drag UI on drop.
type ReorderRequest struct {
	PreviousIndex *int `json:"previousIndex"`
	NextIndex     *int `json:"nextIndex"`
}

type RemoveRequest struct {
	ID string `json:"id"`
}

type RenameRequest struct {
	FileName string `json:"fileName"`
}

// Manifest describes an assembly job for the pdf-assembler.
type Manifest struct {
	SourceBucket string   `json:"sourceBucket,omitempty"`
	Sources      []string `json:"sources,omitempty"`
	SourcePrefix string   `json:"sourcePrefix,omitempty"`
	Pages        []string `json:"pages,omitempty"`
	FileName     string   `json:"fileName,omitempty"`
}

// AssemblyWorkflowArgs is the argument passed to the downstream workflow.
type AssemblyWorkflowArgs struct {
	ExportID  string `json:"exportId"`
	OutputURI string `json:"outputUri"`
	PageCount int    `json:"pageCount"`
}
