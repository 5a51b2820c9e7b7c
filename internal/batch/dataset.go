package batch

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// MetadataFile is the transcript index inside a dataset directory.
const MetadataFile = "metadata.csv"

// Row is one utterance of a dataset.
type Row struct {
	ID   string
	Text string
}

// LoadDataset reads up to limit rows from <root>/<name>/metadata.csv.
//
// Two layouts are accepted. LJSpeech style "id|text[|normalized text]" has no
// header. Comma separated files carry a header naming a "text" column, as
// written by the dataset download script (file_path, text, normalized_text,
// id, ...). In both layouts a non-empty normalized transcript wins.
func LoadDataset(root, name string, limit int) ([]Row, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: invalid name %q", ErrDatasetNotFound, name)
	}

	f, err := os.Open(filepath.Join(root, name, MetadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
		}
		return nil, fmt.Errorf("open dataset %s: %w", name, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	first, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read dataset %s: %w", name, err)
	}
	rest := io.MultiReader(strings.NewReader(first), br)

	var rows []Row
	if cols, ok := csvHeader(first); ok {
		rows, err = readCSV(rest, cols, limit)
	} else {
		rows, err = readPipe(rest, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", name, err)
	}
	return rows, nil
}

// columns locates the fields of a comma separated dataset. -1 means absent.
type columns struct {
	text, normalized, id, file int
}

// csvHeader reports whether line is a comma separated header with a text
// column, and where the known columns are.
func csvHeader(line string) (columns, bool) {
	line = strings.TrimPrefix(strings.TrimSpace(line), "\ufeff")
	if strings.Contains(line, "|") || !strings.Contains(line, ",") {
		return columns{}, false
	}
	fields, err := csv.NewReader(strings.NewReader(line)).Read()
	if err != nil {
		return columns{}, false
	}
	for i := range fields {
		fields[i] = strings.ToLower(strings.TrimSpace(fields[i]))
	}

	cols := columns{
		text:       slices.Index(fields, "text"),
		normalized: slices.Index(fields, "normalized_text"),
		id:         slices.Index(fields, "id"),
		file:       slices.Index(fields, "file_path"),
	}
	if cols.file < 0 {
		cols.file = slices.Index(fields, "file")
	}
	return cols, cols.text >= 0
}

func readPipe(r io.Reader, limit int) ([]Row, error) {
	var rows []Row
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for sc.Scan() {
		if limit > 0 && len(rows) >= limit {
			break
		}
		fields := strings.Split(strings.TrimSpace(sc.Text()), "|")
		if len(fields) < 2 {
			continue
		}
		text := firstNonEmpty(field(fields, 2), field(fields, 1))
		if text == "" {
			continue
		}
		rows = append(rows, Row{ID: rowID(fields[0]), Text: text})
	}
	return rows, sc.Err()
}

func readCSV(r io.Reader, cols columns, limit int) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	if _, err := cr.Read(); err != nil {
		return nil, err
	}

	var rows []Row
	for limit <= 0 || len(rows) < limit {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		text := firstNonEmpty(field(rec, cols.normalized), field(rec, cols.text))
		id := firstNonEmpty(field(rec, cols.id), field(rec, cols.file))
		if text == "" || id == "" {
			continue
		}
		rows = append(rows, Row{ID: rowID(id), Text: text})
	}
	return rows, nil
}

// field returns the trimmed value at i, or "" when i is out of range.
func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// rowID reduces a file reference to a bare, extension-less name.
func rowID(ref string) string {
	base := filepath.Base(filepath.FromSlash(strings.TrimSpace(ref)))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
