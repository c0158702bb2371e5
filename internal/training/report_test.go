package training

import (
	"math"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/textnorm"
)

func TestEvaluate(t *testing.T) {
	F, R := textnorm.Fake, textnorm.Real
	truth := []textnorm.Label{F, F, F, R, R}
	pred := []textnorm.Label{F, F, R, R, F}
	r := Evaluate(truth, pred)

	approx := func(got, want float64) bool { return math.Abs(got-want) < 1e-9 }
	if !approx(r.Accuracy, 0.6) {
		t.Errorf("Accuracy = %v", r.Accuracy)
	}
	if !approx(r.Fake.Precision, 2.0/3) || !approx(r.Fake.Recall, 2.0/3) || r.Fake.Support != 3 {
		t.Errorf("Fake = %+v", r.Fake)
	}
	if !approx(r.Real.Precision, 0.5) || !approx(r.Real.Recall, 0.5) || r.Real.Support != 2 {
		t.Errorf("Real = %+v", r.Real)
	}
	if !approx(r.MacroAvg.F1, (2.0/3+0.5)/2) {
		t.Errorf("MacroAvg = %+v", r.MacroAvg)
	}
	out := r.String()
	for _, want := range []string{"precision", "FAKE", "REAL", "accuracy", "macro avg"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestEvaluateEmpty(t *testing.T) {
	r := Evaluate(nil, nil)
	if r.Accuracy != 0 || r.Total != 0 || math.IsNaN(r.MacroAvg.F1) {
		t.Errorf("empty evaluation = %+v", r)
	}
}
