package training

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/textnorm"
)

type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report is the held-out evaluation of a trained model.
type Report struct {
	Accuracy float64      `json:"accuracy"`
	Fake     ClassMetrics `json:"fake"`
	Real     ClassMetrics `json:"real"`
	MacroAvg ClassMetrics `json:"macro_avg"`
	Total    int          `json:"total"`
}

// Evaluate compares predictions against truth.
func Evaluate(truth, predicted []textnorm.Label) Report {
	var tp, fp, fn, tn int
	for i := range truth {
		switch {
		case truth[i] == textnorm.Fake && predicted[i] == textnorm.Fake:
			tp++
		case truth[i] == textnorm.Real && predicted[i] == textnorm.Fake:
			fp++
		case truth[i] == textnorm.Fake && predicted[i] == textnorm.Real:
			fn++
		default:
			tn++
		}
	}
	r := Report{Total: len(truth)}
	if r.Total > 0 {
		r.Accuracy = float64(tp+tn) / float64(r.Total)
	}
	r.Fake = classMetrics(tp, fp, fn)
	r.Real = classMetrics(tn, fn, fp)
	r.MacroAvg = ClassMetrics{
		Precision: (r.Fake.Precision + r.Real.Precision) / 2,
		Recall:    (r.Fake.Recall + r.Real.Recall) / 2,
		F1:        (r.Fake.F1 + r.Real.F1) / 2,
		Support:   r.Total,
	}
	return r
}

func classMetrics(tp, fp, fn int) ClassMetrics {
	m := ClassMetrics{Support: tp + fn}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// String renders the report as a classification table.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%12s %10s %10s %10s %10s\n", "", "precision", "recall", "f1-score", "support")
	row := func(name string, m ClassMetrics) {
		fmt.Fprintf(&b, "%12s %10.2f %10.2f %10.2f %10d\n", name, m.Precision, m.Recall, m.F1, m.Support)
	}
	row("REAL", r.Real)
	row("FAKE", r.Fake)
	fmt.Fprintf(&b, "\n%12s %10s %10s %10.2f %10d\n", "accuracy", "", "", r.Accuracy, r.Total)
	row("macro avg", r.MacroAvg)
	return b.String()
}
