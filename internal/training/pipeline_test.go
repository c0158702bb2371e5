package training

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/textnorm"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
)

var fakeWords = []string{"shocking", "secret", "exposed", "miracle", "hoax", "aliens", "conspiracy", "banned"}
var realWords = []string{"parliament", "budget", "committee", "quarterly", "minister", "report", "election", "economy"}

func syntheticCorpus(n int) []textnorm.RawDocument {
	docs := make([]textnorm.RawDocument, 0, n)
	for i := 0; i < n; i++ {
		words, label := realWords, textnorm.Real
		if i%3 == 0 {
			words, label = fakeWords, textnorm.Fake
		}
		text := fmt.Sprintf("%s %s %s! http://example.com/%d %s",
			strings.ToUpper(words[i%len(words)]), words[(i+1)%len(words)], words[(i+3)%len(words)], i, words[(i+5)%len(words)])
		l := label
		docs = append(docs, textnorm.RawDocument{Text: text, Label: &l})
	}
	return docs
}

func testConfig() config.TrainingConfig {
	return config.TrainingConfig{
		Seed:           42,
		TestRatio:      0.2,
		MaxTerms:       100,
		Balance:        true,
		SMOTENeighbors: 5,
		Logistic:       config.LogisticConfig{MaxIter: 300, LearningRate: 1, L2: 1e-4, Tolerance: 1e-6},
		Forest:         config.ForestConfig{Trees: 10, MaxDepth: 8, MinSamplesLeaf: 1},
		Boosting:       config.BoostingConfig{Stages: 10, LearningRate: 0.3, MaxDepth: 3, Subsample: 1},
		XGBoost:        config.XGBoostConfig{Rounds: 10, LearningRate: 0.3, MaxDepth: 4, Lambda: 1, MinChildWeight: 0.1, ColsampleByTree: 1},
	}
}

func TestPipelineVectorFamilies(t *testing.T) {
	corpus := syntheticCorpus(90)
	for _, id := range []string{classifier.LogisticRegression, classifier.RandomForest, classifier.GradientBoosting, classifier.XGBoost} {
		t.Run(id, func(t *testing.T) {
			p, err := NewPipeline(id, testConfig(), config.TransformerConfig{})
			if err != nil {
				t.Fatal(err)
			}
			res, err := p.Train(context.Background(), corpus)
			if err != nil {
				t.Fatalf("Train: %v", err)
			}
			if res.TrainSize != 72 || res.TestSize != 18 {
				t.Errorf("split %d/%d, want 72/18", res.TrainSize, res.TestSize)
			}
			if res.Synthetic <= 0 {
				t.Errorf("Synthetic = %d, want oversampled FAKE partition", res.Synthetic)
			}
			if res.Artifact.VocabularyVersion() != res.Vocabulary.Version() {
				t.Error("artifact not tagged with the vocabulary version")
			}
			if res.Report.Accuracy < 0.9 {
				t.Errorf("held-out accuracy %v on separable data\n%s", res.Report.Accuracy, res.Report)
			}
		})
	}
}

func TestPipelineDeterministic(t *testing.T) {
	corpus := syntheticCorpus(60)
	run := func() *Result {
		p, _ := NewPipeline(classifier.RandomForest, testConfig(), config.TransformerConfig{})
		res, err := p.Train(context.Background(), corpus)
		if err != nil {
			t.Fatal(err)
		}
		return res
	}
	a, b := run(), run()
	if a.Vocabulary.Version() != b.Vocabulary.Version() || a.Report != b.Report {
		t.Errorf("runs differ: %+v vs %+v", a.Report, b.Report)
	}
}

func TestPipelineEmptyCorpus(t *testing.T) {
	p, _ := NewPipeline(classifier.LogisticRegression, testConfig(), config.TransformerConfig{})
	docs := []textnorm.RawDocument{{Text: "123 !!! http://x.y"}, {Text: ""}}
	fakeLabel := textnorm.Fake
	docs[0].Label = &fakeLabel
	if _, err := p.Train(context.Background(), docs); !errors.Is(err, apperrors.ErrEmptyCorpus) {
		t.Errorf("err = %v, want ErrEmptyCorpus", err)
	}
}

func TestPipelineUnknownFamily(t *testing.T) {
	if _, err := NewPipeline("naive_bayes", testConfig(), config.TransformerConfig{}); !errors.Is(err, apperrors.ErrUnknownModel) {
		t.Errorf("err = %v, want ErrUnknownModel", err)
	}
}

func TestPipelineReusesVocabulary(t *testing.T) {
	corpus := syntheticCorpus(60)
	first, _ := NewPipeline(classifier.LogisticRegression, testConfig(), config.TransformerConfig{})
	res, err := first.Train(context.Background(), corpus)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := NewPipeline(classifier.XGBoost, testConfig(), config.TransformerConfig{}, WithVocabulary(res.Vocabulary))
	res2, err := second.Train(context.Background(), syntheticCorpus(45))
	if err != nil {
		t.Fatal(err)
	}
	if res2.Vocabulary != res.Vocabulary || res2.Artifact.VocabularyVersion() != res.Vocabulary.Version() {
		t.Error("reused vocabulary not carried into the new artifact")
	}

	unfitted, _ := NewPipeline(classifier.XGBoost, testConfig(), config.TransformerConfig{}, WithVocabulary(&vocabulary.Store{}))
	if _, err := unfitted.Train(context.Background(), corpus); !errors.Is(err, apperrors.ErrNotFitted) {
		t.Errorf("err = %v, want ErrNotFitted", err)
	}
}

func TestPipelineTransformer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		// Flags any text containing a fake-topic word.
		for _, word := range fakeWords {
			if strings.Contains(string(body), word) {
				w.Write([]byte(`[{"label":"LABEL_1","score":0.9}]`))
				return
			}
		}
		w.Write([]byte(`[{"label":"LABEL_0","score":0.8}]`))
	}))
	defer srv.Close()

	tcfg := config.TransformerConfig{Endpoint: srv.URL, ModelName: "bert-base-uncased", PositiveLabel: "LABEL_1", MaxTokens: 512}
	p, err := NewPipeline(classifier.Transformer, testConfig(), tcfg)
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Train(context.Background(), syntheticCorpus(30))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if res.Vocabulary != nil {
		t.Error("text model should not fit a vocabulary")
	}
	if res.Report.Accuracy != 1 {
		t.Errorf("accuracy = %v\n%s", res.Report.Accuracy, res.Report)
	}

	dir := t.TempDir()
	if err := Persist(context.Background(), dir, res, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(artifact.Path(dir, vocabulary.FileName)); !errors.Is(err, os.ErrNotExist) {
		t.Error("vocabulary written for a text-only run")
	}
}

func TestPipelineTransformerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()
	p, _ := NewPipeline(classifier.Transformer, testConfig(), config.TransformerConfig{Endpoint: srv.URL, MaxTokens: 512})
	if _, err := p.Train(context.Background(), syntheticCorpus(20)); !errors.Is(err, apperrors.ErrModelInference) {
		t.Errorf("err = %v, want ErrModelInference", err)
	}
}

type recordingMirror struct {
	mu    sync.Mutex
	names []string
}

func (m *recordingMirror) PutFile(_ context.Context, name, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	m.mu.Lock()
	m.names = append(m.names, name)
	m.mu.Unlock()
	return nil
}

func TestPersistAndReload(t *testing.T) {
	p, _ := NewPipeline(classifier.LogisticRegression, testConfig(), config.TransformerConfig{})
	res, err := p.Train(context.Background(), syntheticCorpus(60))
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(t.TempDir(), "model")
	mirror := &recordingMirror{}
	if err := Persist(context.Background(), dir, res, mirror); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if len(mirror.names) != 2 || mirror.names[0] != "logistic_regression.fnda" || mirror.names[1] != "vocabulary.fnda" {
		t.Errorf("mirrored %v", mirror.names)
	}

	vocab, err := vocabulary.Load(artifact.Path(dir, vocabulary.FileName))
	if err != nil {
		t.Fatal(err)
	}
	id, a, err := classifier.Load(artifact.Path(dir, classifier.LogisticRegression), Decoders(config.TransformerConfig{}))
	if err != nil {
		t.Fatal(err)
	}
	if id != classifier.LogisticRegression || a.VocabularyVersion() != vocab.Version() {
		t.Errorf("reloaded %q tagged %q, vocabulary %q", id, a.VocabularyVersion(), vocab.Version())
	}
	doc := textnorm.Clean("SHOCKING secret exposed")
	want, _ := res.Artifact.(classifier.VectorModel).PredictProba(res.Vocabulary.Transform(doc))
	got, _ := a.(classifier.VectorModel).PredictProba(vocab.Transform(doc))
	if got != want {
		t.Errorf("prediction changed after reload: %+v vs %+v", got, want)
	}
}

func TestPersistKeepsDifferentVocabulary(t *testing.T) {
	dir := t.TempDir()
	first, _ := NewPipeline(classifier.RandomForest, testConfig(), config.TransformerConfig{})
	res, err := first.Train(context.Background(), syntheticCorpus(60))
	if err != nil {
		t.Fatal(err)
	}
	if err := Persist(context.Background(), dir, res, nil); err != nil {
		t.Fatal(err)
	}

	// A separate run on another corpus fits its own vocabulary.
	other := syntheticCorpus(90)[30:]
	for i := range other {
		other[i].Text += " parliament budget extra words"
	}
	second, _ := NewPipeline(classifier.XGBoost, testConfig(), config.TransformerConfig{})
	res2, err := second.Train(context.Background(), other)
	if err != nil {
		t.Fatal(err)
	}
	if res2.Vocabulary.Version() == res.Vocabulary.Version() {
		t.Fatal("corpora produced the same vocabulary")
	}
	mirror := &recordingMirror{}
	if err := Persist(context.Background(), dir, res2, mirror); !errors.Is(err, apperrors.ErrVocabularyMismatch) {
		t.Fatalf("err = %v, want ErrVocabularyMismatch", err)
	}
	if len(mirror.names) != 0 {
		t.Errorf("refused persist mirrored %v", mirror.names)
	}
	if _, err := os.Stat(artifact.Path(dir, classifier.XGBoost)); !errors.Is(err, os.ErrNotExist) {
		t.Error("refused persist wrote the model")
	}
	kept, err := vocabulary.Load(artifact.Path(dir, vocabulary.FileName))
	if err != nil || kept.Version() != res.Vocabulary.Version() {
		t.Fatalf("vocabulary replaced: %v", err)
	}

	if err := Persist(context.Background(), dir, res2, nil, ReplaceVocabulary()); err != nil {
		t.Fatalf("Persist with ReplaceVocabulary: %v", err)
	}
	replaced, err := vocabulary.Load(artifact.Path(dir, vocabulary.FileName))
	if err != nil || replaced.Version() != res2.Vocabulary.Version() {
		t.Errorf("vocabulary not replaced: %v", err)
	}
}

func TestCheckVocabulary(t *testing.T) {
	dir := t.TempDir()
	if err := CheckVocabulary(dir, "anything"); err != nil {
		t.Errorf("empty dir: %v", err)
	}
	vocab, err := vocabulary.Fit([]string{"budget committee report"}, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := vocab.Save(artifact.Path(dir, vocabulary.FileName)); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		version string
		wantErr bool
	}{
		{vocab.Version(), false},
		{"other", true},
		{"", true},
	}
	for _, tt := range tests {
		err := CheckVocabulary(dir, tt.version)
		if got := errors.Is(err, apperrors.ErrVocabularyMismatch); got != tt.wantErr {
			t.Errorf("CheckVocabulary(%q) = %v", tt.version, err)
		}
	}
}
