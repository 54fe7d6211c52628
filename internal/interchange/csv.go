package interchange

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/user/event-harvest/internal/entity"
)

// WriteCSV writes ds with its header. Null cells are empty; the embedding cell holds a
// JSON number array.
func WriteCSV(w io.Writer, ds *entity.Dataset) error {
	cw := csv.NewWriter(w)
	header := ds.Header()
	if err := cw.Write(header); err != nil {
		return err
	}
	cells := make([]string, len(header))
	for i, row := range ds.Rows {
		for j, col := range header {
			switch col {
			case entity.EmbeddingColumn:
				cells[j] = ""
				if row.Embedding != nil {
					b, err := json.Marshal(row.Embedding)
					if err != nil {
						return fmt.Errorf("row %d embedding: %w", i, err)
					}
					cells[j] = string(b)
				}
			default:
				cells[j], _ = row.Get(col)
			}
		}
		if err := cw.Write(cells); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a dataset CSV. Empty cells become null.
func ReadCSV(r io.Reader, category string) (*entity.Dataset, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	ds := &entity.Dataset{Category: category, Columns: dataColumns(header)}
	for line := 2; ; line++ {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		rec := entity.NewRecord("")
		for i, col := range header {
			cell := cells[i]
			switch col {
			case entity.EmbeddingColumn:
				if cell == "" {
					continue
				}
				if err := json.Unmarshal([]byte(cell), &rec.Embedding); err != nil {
					return nil, fmt.Errorf("csv line %d embedding: %w", line, err)
				}
			default:
				if cell == "" {
					rec.Set(col, nil)
				} else {
					rec.Set(col, entity.StringPtr(cell))
				}
			}
		}
		ds.Rows = append(ds.Rows, rec)
	}
	return ds, nil
}

// ConvertCSVToJSON rewrites a cleaned dataset CSV as the list-of-objects JSON.
func ConvertCSVToJSON(in io.Reader, out io.Writer) error {
	ds, err := ReadCSV(in, "")
	if err != nil {
		return err
	}
	return WriteJSON(out, ds)
}

// WriteFiles writes <category>.csv and <category>.json under dir and returns their paths.
func WriteFiles(dir string, ds *entity.Dataset) (csvPath, jsonPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	csvPath = filepath.Join(dir, ds.Category+".csv")
	jsonPath = filepath.Join(dir, ds.Category+".json")
	if err := writeFile(csvPath, ds, WriteCSV); err != nil {
		return "", "", err
	}
	if err := writeFile(jsonPath, ds, WriteJSON); err != nil {
		return "", "", err
	}
	return csvPath, jsonPath, nil
}

func writeFile(path string, ds *entity.Dataset, write func(io.Writer, *entity.Dataset) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, ds); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
