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

	"github.com/lehigh-university-libraries/docintel/internal/fetcher"
	"github.com/parquet-go/parquet-go"
)

// Loader handles loading of evaluation datasets
type Loader struct {
	datasetPath string
}

// NewLoader creates a new dataset loader
func NewLoader(datasetPath string) *Loader {
	return &Loader{
		datasetPath: datasetPath,
	}
}

// Load loads every case from a dataset file (JSONL or Parquet)
func (l *Loader) Load() ([]Case, error) {
	return l.LoadSample(0)
}

// LoadSample loads at most limit cases. A limit of zero or less loads all.
func (l *Loader) LoadSample(limit int) ([]Case, error) {
	ext := strings.ToLower(filepath.Ext(l.datasetPath))

	var (
		cases []Case
		err   error
	)
	switch ext {
	case ".parquet":
		cases, err = l.loadParquet(limit)
	case ".jsonl", ".json":
		cases, err = l.loadJSONL(limit)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", ext)
	}
	if err != nil {
		return nil, err
	}

	for i := range cases {
		if err := cases[i].Validate(); err != nil {
			return nil, err
		}
		cases[i].URI = l.resolveURI(cases[i].URI)
	}
	return cases, nil
}

// resolveURI makes local document paths relative to the dataset file.
func (l *Loader) resolveURI(uri string) string {
	if fetcher.IsRemote(uri) || strings.HasPrefix(uri, "file://") || filepath.IsAbs(uri) {
		return uri
	}
	return filepath.Join(filepath.Dir(l.datasetPath), uri)
}

// loadJSONL loads cases from a JSONL file
func (l *Loader) loadJSONL(limit int) ([]Case, error) {
	slog.Debug("Opening JSONL file", "path", l.datasetPath)

	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	var cases []Case
	scanner := bufio.NewScanner(file)

	// Increase buffer size for large JSON lines
	const maxCapacity = 10 * 1024 * 1024 // 10MB per line
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		if limit > 0 && len(cases) >= limit {
			break
		}
		lineNum++
		line := scanner.Bytes()

		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var c Case
		if err := json.Unmarshal(line, &c); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}

		cases = append(cases, c)

		if lineNum == 1 {
			slog.Debug("First case sample", "id", c.ID, "uri", c.URI, "preset", c.Preset, "expected_fields", len(c.Expected))
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading dataset: %w", err)
	}

	slog.Debug("Finished reading JSONL file", "total_cases", len(cases), "total_lines", lineNum)

	return cases, nil
}

// loadParquet loads cases from a Parquet file
func (l *Loader) loadParquet(limit int) ([]Case, error) {
	slog.Debug("Opening Parquet file", "path", l.datasetPath, "limit", limit)

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

	slog.Debug("Parquet file opened successfully", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[parquetCase](pf)
	defer reader.Close()

	var cases []Case
	rows := make([]parquetCase, 128) // Read in batches

	batchNum := 0
	for limit <= 0 || len(cases) < limit {
		n, err := reader.Read(rows)
		if n > 0 {
			batchNum++
			if limit > 0 && n > limit-len(cases) {
				n = limit - len(cases)
			}
			for _, row := range rows[:n] {
				c, convErr := row.toCase()
				if convErr != nil {
					return nil, convErr
				}
				cases = append(cases, c)
			}
			slog.Debug("Read batch from Parquet", "batch", batchNum, "rows_in_batch", n, "total_rows_read", len(cases))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("failed to read parquet rows: %w", err)
			}
			break
		}
	}

	slog.Debug("Finished reading Parquet file", "total_cases", len(cases), "total_batches", batchNum)

	return cases, nil
}
