package model

// RunRecord is a finished crawl as kept in the run history.
type RunRecord struct {
	// ID is assigned by the history store.
	ID int64 `json:"id"`

	// OutputDir is where the run wrote its Markdown tree.
	OutputDir string `json:"output_dir"`

	// Manifest is the manifest written at the end of the run.
	Manifest Manifest `json:"manifest"`

	// Pages lists the saved pages. It is empty in run listings.
	Pages []PageRecord `json:"pages,omitempty"`
}

// Failed reports whether the run recorded any failure.
func (r *RunRecord) Failed() bool {
	return len(r.Manifest.Failures) > 0
}
