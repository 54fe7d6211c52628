// Package aggregate turns extracted records into a cleaned per-category dataset.
package aggregate

import (
	"slices"

	"github.com/user/event-harvest/internal/category"
	"github.com/user/event-harvest/internal/entity"
)

// Schema is a category's column set before merge plus the fields folded into content.
type Schema struct {
	Category      string
	Columns       []string
	ContentFields []string
}

func SchemaOf(c category.Category) Schema {
	return Schema{Category: c.Name, Columns: c.Columns, ContentFields: c.ContentFields}
}

// MergedColumns returns the columns after merge: the content fields collapse into one
// content column placed where the first of them was.
func (s Schema) MergedColumns() []string {
	out := make([]string, 0, len(s.Columns))
	placed := false
	for _, col := range s.Columns {
		if !slices.Contains(s.ContentFields, col) {
			out = append(out, col)
			continue
		}
		if !placed {
			out = append(out, entity.ContentField)
			placed = true
		}
	}
	if !placed {
		out = append(out, entity.ContentField)
	}
	return out
}

// Stats counts what the cleaner did.
type Stats struct {
	Input   int
	Dropped int
}

// Merge folds the content fields of rec into the content field and removes them.
// Two fields are concatenated with a missing half read as ""; a single field is
// renamed as-is, keeping a null value null.
func Merge(rec *entity.Record, contentFields []string) {
	switch len(contentFields) {
	case 0:
		return
	case 1:
		rec.Fields[entity.ContentField] = rec.Fields[contentFields[0]]
	default:
		var merged string
		for _, f := range contentFields {
			v, _ := rec.Get(f)
			merged += v
		}
		rec.Fields[entity.ContentField] = &merged
	}
	for _, f := range contentFields {
		if f != entity.ContentField {
			delete(rec.Fields, f)
		}
	}
}

// Aggregate merges content fields, drops records without content and keeps input order.
// Every other null field is preserved.
func Aggregate(s Schema, records []*entity.Record) (*entity.Dataset, Stats) {
	cols := s.MergedColumns()
	ds := &entity.Dataset{Category: s.Category, Columns: cols, Rows: make([]*entity.Record, 0, len(records))}
	stats := Stats{Input: len(records)}

	for _, rec := range records {
		if rec == nil {
			continue
		}
		Merge(rec, s.ContentFields)
		if !rec.HasContent() {
			stats.Dropped++
			continue
		}
		ds.Rows = append(ds.Rows, project(rec, cols))
	}
	return ds, stats
}

// project keeps exactly the dataset columns, filling absent ones with null.
func project(rec *entity.Record, cols []string) *entity.Record {
	out := entity.NewRecord(rec.DetailURL)
	out.Embedding = rec.Embedding
	for _, c := range cols {
		out.Fields[c] = rec.Fields[c]
	}
	return out
}
