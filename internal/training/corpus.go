package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/textnorm"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
)

// Source is one CSV file of labelled articles. When Label is set every row
// gets that label and the file needs no label column.
type Source struct {
	Path  string
	Label *textnorm.Label
}

// ParseSource parses "path" or "path:label" where label is 1/0/FAKE/REAL.
func ParseSource(s string) (Source, error) {
	if i := strings.LastIndex(s, ":"); i > 0 {
		if l, ok := textnorm.ParseLabel(s[i+1:]); ok {
			return Source{Path: s[:i], Label: &l}, nil
		}
	}
	if s == "" {
		return Source{}, fmt.Errorf("empty source: %w", apperrors.ErrInvalidInput)
	}
	return Source{Path: s}, nil
}

// LoadCorpus reads and concatenates the sources. With 0 < sampleFraction < 1
// each file is down-sampled with the given seed.
func LoadCorpus(sources []Source, sampleFraction float64, seed int64) ([]textnorm.RawDocument, error) {
	logger := slog.Default().With("component", "corpus")
	var docs []textnorm.RawDocument
	for _, src := range sources {
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", src.Path, err)
		}
		fileDocs, skipped, err := ReadCSV(f, src.Label)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", src.Path, err)
		}
		if skipped > 0 {
			logger.Warn("skipped rows with unparseable labels", "file", src.Path, "skipped", skipped)
		}
		if sampleFraction > 0 && sampleFraction < 1 {
			fileDocs = sample(fileDocs, sampleFraction, seed)
		}
		logger.Info("loaded dataset", "file", src.Path, "documents", len(fileDocs))
		docs = append(docs, fileDocs...)
	}
	return docs, nil
}

// ReadCSV parses one labelled CSV. It returns the documents and the number
// of rows skipped because their label could not be parsed.
func ReadCSV(r io.Reader, fixed *textnorm.Label) ([]textnorm.RawDocument, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, fmt.Errorf("missing header row: %w", apperrors.ErrInvalidInput)
		}
		return nil, 0, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	textCol, ok := cols["text"]
	if !ok {
		return nil, 0, fmt.Errorf("no text column: %w", apperrors.ErrInvalidInput)
	}
	labelCol, hasLabel := cols["label"]
	if !hasLabel && fixed == nil {
		return nil, 0, fmt.Errorf("no label column and no fixed label: %w", apperrors.ErrInvalidInput)
	}
	titleCol, hasTitle := cols["title"]

	var docs []textnorm.RawDocument
	skipped := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("reading row: %w", err)
		}
		if textCol >= len(rec) {
			skipped++
			continue
		}
		doc := textnorm.RawDocument{Text: rec[textCol]}
		if hasTitle && titleCol < len(rec) {
			doc.Title = rec[titleCol]
		}
		if fixed != nil {
			l := *fixed
			doc.Label = &l
		} else {
			if labelCol >= len(rec) {
				skipped++
				continue
			}
			l, ok := textnorm.ParseLabel(rec[labelCol])
			if !ok {
				skipped++
				continue
			}
			doc.Label = &l
		}
		docs = append(docs, doc)
	}
	return docs, skipped, nil
}

func sample(docs []textnorm.RawDocument, frac float64, seed int64) []textnorm.RawDocument {
	k := int(math.Round(frac * float64(len(docs))))
	rng := rand.New(rand.NewSource(seed))
	picked := rng.Perm(len(docs))[:k]
	sort.Ints(picked)
	out := make([]textnorm.RawDocument, k)
	for i, j := range picked {
		out[i] = docs[j]
	}
	return out
}
