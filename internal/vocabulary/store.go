// Package vocabulary fits and applies the TF-IDF term vocabulary shared by
// training and serving. A Store is immutable once fitted or loaded, so the
// same instance can be used from any number of goroutines.
package vocabulary

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/feature"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
)

// FileName is the artifact name of the vocabulary inside an artifact dir.
const FileName = "vocabulary"

type Store struct {
	terms     []string
	index     map[string]int
	idf       []float64
	stopWords map[string]struct{}
	numDocs   int
	maxTerms  int
	version   string
}

// Fit builds a Store from cleaned documents. The maxTerms most frequent
// terms across the corpus are kept (ties broken lexically) and indexed in
// lexical order. IDF is smoothed: ln((1+n)/(1+df)) + 1.
func Fit(corpus []string, maxTerms int, stopWords map[string]struct{}) (*Store, error) {
	if maxTerms <= 0 {
		return nil, fmt.Errorf("maxTerms must be positive, got %d: %w", maxTerms, apperrors.ErrInvalidInput)
	}
	if stopWords == nil {
		stopWords = map[string]struct{}{}
	}

	termFreq := make(map[string]int)
	docFreq := make(map[string]int)
	nonEmpty := 0
	for _, doc := range corpus {
		terms := tokenize(doc, stopWords)
		if len(terms) == 0 {
			continue
		}
		nonEmpty++
		seen := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			termFreq[t]++
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				docFreq[t]++
			}
		}
	}
	if nonEmpty == 0 {
		return nil, fmt.Errorf("fitting vocabulary on %d documents: %w", len(corpus), apperrors.ErrEmptyCorpus)
	}

	ranked := make([]string, 0, len(termFreq))
	for t := range termFreq {
		ranked = append(ranked, t)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if termFreq[ranked[i]] != termFreq[ranked[j]] {
			return termFreq[ranked[i]] > termFreq[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > maxTerms {
		ranked = ranked[:maxTerms]
	}
	sort.Strings(ranked)

	n := float64(len(corpus))
	idf := make([]float64, len(ranked))
	for i, t := range ranked {
		idf[i] = math.Log((1+n)/(1+float64(docFreq[t]))) + 1
	}

	stops := make(map[string]struct{}, len(stopWords))
	for w := range stopWords {
		stops[w] = struct{}{}
	}
	return newStore(ranked, idf, stops, len(corpus), maxTerms), nil
}

func newStore(terms []string, idf []float64, stopWords map[string]struct{}, numDocs, maxTerms int) *Store {
	index := make(map[string]int, len(terms))
	for i, t := range terms {
		index[t] = i
	}
	s := &Store{
		terms:     terms,
		index:     index,
		idf:       idf,
		stopWords: stopWords,
		numDocs:   numDocs,
		maxTerms:  maxTerms,
	}
	s.version = s.fingerprint()
	return s
}

// Transform maps a cleaned document to its L2-normalised TF-IDF vector.
// Unknown terms are ignored; a document with no known terms yields the
// zero vector.
func (s *Store) Transform(doc string) feature.Vector {
	if !s.Fitted() {
		return feature.Zero(0)
	}
	counts := make(map[int]float64)
	for _, t := range tokenize(doc, s.stopWords) {
		if i, ok := s.index[t]; ok {
			counts[i]++
		}
	}
	if len(counts) == 0 {
		return feature.Zero(len(s.terms))
	}
	var norm float64
	for i, c := range counts {
		w := c * s.idf[i]
		counts[i] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range counts {
		counts[i] /= norm
	}
	return feature.FromMap(len(s.terms), counts)
}

// Fitted reports whether s holds a fitted vocabulary.
func (s *Store) Fitted() bool {
	return s != nil && len(s.terms) > 0
}

// Len returns the vector dimensionality.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.terms)
}

// Version is a hex SHA-256 fingerprint of the fitted state. Two stores with
// equal versions produce identical vectors.
func (s *Store) Version() string {
	if s == nil {
		return ""
	}
	return s.version
}

// Terms returns the indexed terms in index order.
func (s *Store) Terms() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.terms))
	copy(out, s.terms)
	return out
}

// IDF returns the inverse document frequency of term.
func (s *Store) IDF(term string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	i, ok := s.index[term]
	if !ok {
		return 0, false
	}
	return s.idf[i], true
}

func (s *Store) sortedStopWords() []string {
	out := make([]string, 0, len(s.stopWords))
	for w := range s.stopWords {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

func (s *Store) fingerprint() string {
	h := sha256.New()
	var buf [8]byte
	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	writeInt(s.maxTerms)
	writeInt(s.numDocs)
	writeInt(len(s.terms))
	for i, t := range s.terms {
		h.Write([]byte(t))
		h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(s.idf[i]))
		h.Write(buf[:])
	}
	stops := s.sortedStopWords()
	writeInt(len(stops))
	for _, w := range stops {
		h.Write([]byte(w))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type payload struct {
	Terms     []string  `json:"terms"`
	IDF       []float64 `json:"idf"`
	StopWords []string  `json:"stop_words"`
	NumDocs   int       `json:"num_docs"`
	MaxTerms  int       `json:"max_terms"`
}

// Save writes the store atomically to path.
func (s *Store) Save(path string) error {
	if !s.Fitted() {
		return fmt.Errorf("saving vocabulary: %w", apperrors.ErrNotFitted)
	}
	meta := artifact.Meta{Kind: artifact.KindVocabulary, VocabularyVersion: s.version}
	p := payload{
		Terms:     s.terms,
		IDF:       s.idf,
		StopWords: s.sortedStopWords(),
		NumDocs:   s.numDocs,
		MaxTerms:  s.maxTerms,
	}
	if err := artifact.WriteFile(path, meta, p); err != nil {
		return fmt.Errorf("saving vocabulary: %w", err)
	}
	return nil
}

// Load reads a store written by Save and verifies its fingerprint.
func Load(path string) (*Store, error) {
	meta, raw, err := artifact.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading vocabulary: %w", err)
	}
	return decode(meta, raw)
}

// Decode rebuilds a store from already-read artifact bytes.
func Decode(data []byte) (*Store, error) {
	meta, raw, err := artifact.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding vocabulary: %w", err)
	}
	return decode(meta, raw)
}

func decode(meta artifact.Meta, raw json.RawMessage) (*Store, error) {
	if meta.Kind != artifact.KindVocabulary {
		return nil, fmt.Errorf("artifact kind %q is not a vocabulary: %w", meta.Kind, artifact.ErrCorrupt)
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parsing vocabulary payload: %w", err)
	}
	if len(p.Terms) == 0 || len(p.Terms) != len(p.IDF) {
		return nil, fmt.Errorf("vocabulary has %d terms and %d idf values: %w", len(p.Terms), len(p.IDF), artifact.ErrCorrupt)
	}
	stops := make(map[string]struct{}, len(p.StopWords))
	for _, w := range p.StopWords {
		stops[w] = struct{}{}
	}
	s := newStore(p.Terms, p.IDF, stops, p.NumDocs, p.MaxTerms)
	if meta.VocabularyVersion != "" && meta.VocabularyVersion != s.version {
		return nil, fmt.Errorf("vocabulary fingerprint %s does not match recorded %s: %w", s.version, meta.VocabularyVersion, artifact.ErrCorrupt)
	}
	return s, nil
}
