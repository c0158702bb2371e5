package classifier

import (
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/artifact"
)

func TestProbabilitiesValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Probabilities
		wantErr bool
	}{
		{"valid", FromFake(0.3), false},
		{"certain", FromFake(1), false},
		{"nan", Probabilities{Fake: math.NaN(), Real: 0.5}, true},
		{"negative", Probabilities{Fake: -0.1, Real: 1.1}, true},
		{"bad sum", Probabilities{Fake: 0.6, Real: 0.6}, true},
		{"inf", Probabilities{Fake: math.Inf(1), Real: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.p.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSigmoid(t *testing.T) {
	if Sigmoid(0) != 0.5 {
		t.Errorf("Sigmoid(0) = %v", Sigmoid(0))
	}
	if s := Sigmoid(1e6); s != 1 || math.IsNaN(s) {
		t.Errorf("Sigmoid(1e6) = %v", s)
	}
	if s := Sigmoid(-1e6); s < 0 || s > 1e-200 {
		t.Errorf("Sigmoid(-1e6) = %v", s)
	}
}

func TestSaveLoad(t *testing.T) {
	path := artifact.Path(t.TempDir(), "const-model")
	if err := Save(path, "const-model", constModel{pFake: 0.7, vocab: "v1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	decoders := map[string]Decoder{
		"const": func(meta artifact.Meta, raw json.RawMessage) (Artifact, error) {
			var p map[string]float64
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, err
			}
			return constModel{pFake: p["p_fake"], vocab: meta.VocabularyVersion}, nil
		},
	}
	id, a, err := Load(path, decoders)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if id != "const-model" || a.VocabularyVersion() != "v1" || a.(constModel).pFake != 0.7 {
		t.Errorf("Load = %q %+v", id, a)
	}

	if _, _, err := Load(path, map[string]Decoder{}); err == nil {
		t.Error("expected unknown family error")
	}
	if _, _, err := Load(filepath.Join(t.TempDir(), "absent.fnda"), decoders); err == nil {
		t.Error("expected error for missing file")
	}
}
