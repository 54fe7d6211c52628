package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/event-harvest/internal/entity"
)

func record(url string, fields map[string]*string) *entity.Record {
	r := entity.NewRecord(entity.DetailURL(url))
	for k, v := range fields {
		r.Set(k, v)
	}
	return r
}

var (
	festivalSchema = Schema{
		Category:      "festival",
		Columns:       []string{"name", "price", "content1", "content2", "image"},
		ContentFields: []string{"content1", "content2"},
	}
	musicalSchema = Schema{
		Category:      "musical",
		Columns:       []string{"name", "content1", "rating"},
		ContentFields: []string{"content1"},
	}
)

// TestMerge_Concatenates covers the two-field merge and the single-field rename.
func TestMerge_Concatenates(t *testing.T) {
	t.Parallel()

	r := record("u", map[string]*string{"content1": entity.StringPtr("A"), "content2": entity.StringPtr("B")})
	Merge(r, festivalSchema.ContentFields)
	got, ok := r.Get(entity.ContentField)
	require.True(t, ok)
	assert.Equal(t, "AB", got)
	assert.NotContains(t, r.Fields, "content1")
	assert.NotContains(t, r.Fields, "content2")

	r = record("u", map[string]*string{"content1": entity.StringPtr("A")})
	Merge(r, musicalSchema.ContentFields)
	got, ok = r.Get(entity.ContentField)
	require.True(t, ok)
	assert.Equal(t, "A", got)
	assert.NotContains(t, r.Fields, "content1")
}

// TestMerge_MissingHalf verifies a null half is read as the empty string.
func TestMerge_MissingHalf(t *testing.T) {
	t.Parallel()

	r := record("u", map[string]*string{"content1": nil, "content2": entity.StringPtr("B")})
	Merge(r, festivalSchema.ContentFields)
	got, _ := r.Get(entity.ContentField)
	assert.Equal(t, "B", got)

	r = record("u", map[string]*string{"content1": entity.StringPtr("A")})
	Merge(r, festivalSchema.ContentFields)
	got, _ = r.Get(entity.ContentField)
	assert.Equal(t, "A", got)
}

func TestMergedColumns(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"name", "price", "content", "image"}, festivalSchema.MergedColumns())
	assert.Equal(t, []string{"name", "content", "rating"}, musicalSchema.MergedColumns())
}

// TestAggregate_CompletenessFilter verifies empty or null content is the only drop rule
// and that retained rows keep their null fields and input order.
func TestAggregate_CompletenessFilter(t *testing.T) {
	t.Parallel()

	records := []*entity.Record{
		record("u1", map[string]*string{"name": entity.StringPtr("One"), "price": nil, "content1": entity.StringPtr("desc"), "content2": nil}),
		record("u2", map[string]*string{"name": entity.StringPtr("Two"), "content1": nil, "content2": nil}),
		record("u3", map[string]*string{"name": nil, "content1": entity.StringPtr(""), "content2": entity.StringPtr("more")}),
		record("u4", map[string]*string{"name": entity.StringPtr("Four"), "content1": entity.StringPtr("  "), "content2": entity.StringPtr("")}),
	}

	ds, stats := Aggregate(festivalSchema, records)
	assert.Equal(t, Stats{Input: 4, Dropped: 2}, stats)
	assert.Equal(t, "festival", ds.Category)
	assert.Equal(t, []string{"name", "price", "content", "image"}, ds.Columns)
	require.Len(t, ds.Rows, 2)

	assert.Equal(t, entity.DetailURL("u1"), ds.Rows[0].DetailURL)
	assert.Equal(t, entity.DetailURL("u3"), ds.Rows[1].DetailURL)

	first := ds.Rows[0]
	price, present := first.Fields["price"]
	assert.True(t, present)
	assert.Nil(t, price)
	image, present := first.Fields["image"]
	assert.True(t, present, "columns without a value are filled with null")
	assert.Nil(t, image)

	content, _ := ds.Rows[1].Get(entity.ContentField)
	assert.Equal(t, "more", content)
	assert.Nil(t, ds.Rows[1].Fields["name"])
}

// TestAggregate_SingleFieldNullDropped verifies a renamed null content is dropped.
func TestAggregate_SingleFieldNullDropped(t *testing.T) {
	t.Parallel()

	records := []*entity.Record{
		record("m1", map[string]*string{"name": entity.StringPtr("Cats"), "content1": nil}),
		record("m2", map[string]*string{"name": entity.StringPtr("Rent"), "content1": entity.StringPtr("Bohemians")}),
	}
	ds, stats := Aggregate(musicalSchema, records)
	assert.Equal(t, 1, stats.Dropped)
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, entity.DetailURL("m2"), ds.Rows[0].DetailURL)
}
