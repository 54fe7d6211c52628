package entity

import "strings"

const (
	// ContentField is the merged description column every cleaned dataset carries.
	ContentField = "content"
	// EmbeddingColumn is appended to the header once a dataset has been vectorized.
	EmbeddingColumn = "embedding"
)

// DetailURL is a canonical address of one event's detail page.
type DetailURL string

// Record holds one event's extracted field values keyed by field name.
// A nil value means the field was absent on the page or had no rule.
type Record struct {
	DetailURL DetailURL
	Fields    map[string]*string
	Embedding []float32
}

// NewRecord returns an empty record for the given detail page.
func NewRecord(u DetailURL) *Record {
	return &Record{DetailURL: u, Fields: make(map[string]*string)}
}

// Set stores v under name. A nil v records an explicit null.
func (r *Record) Set(name string, v *string) {
	r.Fields[name] = v
}

// Get returns the value of a field and whether it is non-null.
func (r *Record) Get(name string) (string, bool) {
	v, ok := r.Fields[name]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// HasContent reports whether the merged content field is present and non-blank.
func (r *Record) HasContent() bool {
	v, ok := r.Get(ContentField)
	return ok && strings.TrimSpace(v) != ""
}

// StringPtr is a small helper for building optional field values.
func StringPtr(s string) *string {
	return &s
}

// Dataset is one flat table per category: ordered columns and rows in discovery order.
type Dataset struct {
	Category string
	Columns  []string
	Rows     []*Record
}

// Vectorized reports whether every row carries an embedding.
func (d *Dataset) Vectorized() bool {
	if len(d.Rows) == 0 {
		return false
	}
	for _, r := range d.Rows {
		if r.Embedding == nil {
			return false
		}
	}
	return true
}

// Header returns the exported column order: the merged field set, then the embedding
// column when present. Detail URLs are kept in persistence only.
func (d *Dataset) Header() []string {
	h := make([]string, 0, len(d.Columns)+1)
	h = append(h, d.Columns...)
	if d.Vectorized() {
		h = append(h, EmbeddingColumn)
	}
	return h
}
