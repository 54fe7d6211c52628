// Package interchange converts datasets to and from the CSV and JSON files the harvester
// publishes. JSON output is a list of objects keyed by column, nulls preserved and
// embeddings written as number arrays.
package interchange

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/user/event-harvest/internal/entity"
)

// WriteJSON writes ds as a JSON array with keys in header order.
func WriteJSON(w io.Writer, ds *entity.Dataset) error {
	bw := bufio.NewWriter(w)
	header := ds.Header()

	bw.WriteString("[")
	for i, row := range ds.Rows {
		if i > 0 {
			bw.WriteString(",")
		}
		bw.WriteString("\n  {")
		for j, col := range header {
			if j > 0 {
				bw.WriteString(", ")
			}
			key, _ := json.Marshal(col)
			bw.Write(key)
			bw.WriteString(": ")
			val, err := jsonValue(row, col)
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", i, col, err)
			}
			bw.Write(val)
		}
		bw.WriteString("}")
	}
	if len(ds.Rows) > 0 {
		bw.WriteString("\n")
	}
	bw.WriteString("]\n")
	return bw.Flush()
}

func jsonValue(row *entity.Record, col string) ([]byte, error) {
	switch col {
	case entity.EmbeddingColumn:
		if row.Embedding == nil {
			return []byte("null"), nil
		}
		return json.Marshal(row.Embedding)
	default:
		// A nil *string marshals as null.
		return json.Marshal(row.Fields[col])
	}
}

// ReadJSON parses a list-of-objects file back into a dataset. Columns follow the key
// order of the first object.
func ReadJSON(r io.Reader, category string) (*entity.Dataset, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json list: %w", err)
	}

	ds := &entity.Dataset{Category: category}
	for i, obj := range raw {
		keys, err := objectKeys(obj)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		var values map[string]json.RawMessage
		if err := json.Unmarshal(obj, &values); err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		if i == 0 {
			ds.Columns = dataColumns(keys)
		}

		rec := entity.NewRecord("")
		for _, k := range keys {
			v := values[k]
			switch k {
			case entity.EmbeddingColumn:
				if err := json.Unmarshal(v, &rec.Embedding); err != nil {
					return nil, fmt.Errorf("object %d %s: %w", i, k, err)
				}
			default:
				var s *string
				if err := json.Unmarshal(v, &s); err != nil {
					return nil, fmt.Errorf("object %d %s: expected string or null: %w", i, k, err)
				}
				rec.Set(k, s)
			}
		}
		ds.Rows = append(ds.Rows, rec)
	}
	return ds, nil
}

// objectKeys returns the keys of a JSON object in document order.
func objectKeys(obj json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(obj))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("expected an object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// dataColumns drops the embedding column from a header.
func dataColumns(header []string) []string {
	cols := make([]string, 0, len(header))
	for _, h := range header {
		if h != entity.EmbeddingColumn {
			cols = append(cols, h)
		}
	}
	return cols
}
