package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/parquet-go/parquet-go"
)

// Loader reads labelled site photos from a JSONL or Parquet file
type Loader struct {
	datasetPath string
}

func NewLoader(datasetPath string) *Loader {
	return &Loader{
		datasetPath: datasetPath,
	}
}

// Path is the dataset file being read
func (l *Loader) Path() string {
	return l.datasetPath
}

// Load reads every record
func (l *Loader) Load() ([]Record, error) {
	return l.LoadSample(0)
}

// LoadSample reads at most limit records; zero or less reads everything
func (l *Loader) LoadSample(limit int) ([]Record, error) {
	ext := strings.ToLower(filepath.Ext(l.datasetPath))

	switch ext {
	case ".parquet":
		return l.loadParquet(limit)
	case ".jsonl", ".json":
		return l.loadJSONL(limit)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", ext)
	}
}

func full(records []Record, limit int) bool {
	return limit > 0 && len(records) >= limit
}

func (l *Loader) loadJSONL(limit int) ([]Record, error) {
	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)

	// Increase buffer size for large JSON lines
	const maxCapacity = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)

	lineNum := 0
	for !full(records, limit) && scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var record Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		if err := validate(record); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading dataset: %w", err)
	}

	slog.Debug("Finished reading JSONL file", "path", l.datasetPath, "total_records", len(records), "total_lines", lineNum)
	return records, nil
}

func (l *Loader) loadParquet(limit int) ([]Record, error) {
	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet file opened",
		"path", l.datasetPath,
		"size", humanize.Bytes(uint64(info.Size())),
		"num_rows", pf.NumRows(),
		"num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[Record](pf)
	defer reader.Close()

	var records []Record
	rows := make([]Record, 128)

	for !full(records, limit) {
		n, err := reader.Read(rows)
		for _, row := range rows[:n] {
			if full(records, limit) {
				break
			}
			if verr := validate(row); verr != nil {
				return nil, fmt.Errorf("row %d: %w", len(records)+1, verr)
			}
			records = append(records, row)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading parquet rows: %w", err)
		}
	}

	slog.Debug("Finished reading Parquet file", "path", l.datasetPath, "total_records", len(records))
	return records, nil
}

func validate(r Record) error {
	if r.ImagePath == "" {
		return fmt.Errorf("record %q has no image_path", r.ID)
	}
	return nil
}
