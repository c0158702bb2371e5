// Package scoring runs the prediction service over many articles at once:
// CSV files in batch and article events arriving on Kafka.
package scoring

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/predictor"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/textnorm"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/metrics"
)

// Columns appended to every scored CSV.
var ResultColumns = []string{"prediction", "proba_fake", "proba_real"}

const failedPrediction = "Error"

type Predictor interface {
	Predict(ctx context.Context, rawText, modelID string) (predictor.Result, error)
}

type EventSink interface {
	Track(e analytics.PredictionEvent)
}

type Options struct {
	Model   string
	Workers int
	// Source labels metrics and events, e.g. "csv" or "rss".
	Source  string
	Events  EventSink
	Metrics *metrics.Metrics
}

type Summary struct {
	Rows   int `json:"rows"`
	Scored int `json:"scored"`
	Failed int `json:"failed"`
	Fake   int `json:"fake"`
	Real   int `json:"real"`
}

type rowResult struct {
	res predictor.Result
	err error
}

// ScoreCSV reads articles with a text column from in and writes them to out
// with prediction, proba_fake and proba_real appended. Probabilities are
// percentages with two decimals. A row whose prediction fails is written
// with "Error" and empty probabilities; an unknown model aborts the run
// before anything is written.
func ScoreCSV(ctx context.Context, p Predictor, in io.Reader, out io.Writer, opts Options) (Summary, error) {
	logger := slog.Default().With("component", "csv-scorer", "model", opts.Model)
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Source == "" {
		opts.Source = "csv"
	}

	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Summary{}, fmt.Errorf("missing header row: %w", apperrors.ErrInvalidInput)
		}
		return Summary{}, fmt.Errorf("reading header: %w", err)
	}
	textCol := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")), "text") {
			textCol = i
			break
		}
	}
	if textCol < 0 {
		return Summary{}, fmt.Errorf("no text column in %v: %w", header, apperrors.ErrInvalidInput)
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return Summary{}, fmt.Errorf("reading rows: %w", err)
	}

	results := make([]rowResult, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, row := range rows {
		g.Go(func() error {
			text := ""
			if textCol < len(row) {
				text = row[textCol]
			}
			res, err := score(gctx, p, text, opts)
			if errors.Is(err, apperrors.ErrUnknownModel) {
				return err
			}
			results[i] = rowResult{res: res, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	cw := csv.NewWriter(out)
	if err := cw.Write(append(append([]string{}, header...), ResultColumns...)); err != nil {
		return Summary{}, fmt.Errorf("writing header: %w", err)
	}
	sum := Summary{Rows: len(rows)}
	for i, row := range rows {
		r := results[i]
		if r.err != nil {
			sum.Failed++
			logger.Warn("row not scored", "row", i+1, "error", r.err)
			row = append(row, failedPrediction, "", "")
		} else {
			sum.Scored++
			if r.res.Label == textnorm.Fake {
				sum.Fake++
			} else {
				sum.Real++
			}
			row = append(row, FormatRow(r.res)...)
		}
		if err := cw.Write(row); err != nil {
			return sum, fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return sum, fmt.Errorf("flushing output: %w", err)
	}
	logger.Info("csv scored",
		"rows", sum.Rows,
		"scored", sum.Scored,
		"failed", sum.Failed,
		"fake", sum.Fake,
	)
	return sum, nil
}

// FormatRow renders a result the way scored CSVs carry it: "Fake" or
// "Real" followed by both probabilities in percent.
func FormatRow(r predictor.Result) []string {
	label := "Real"
	if r.Label == textnorm.Fake {
		label = "Fake"
	}
	return []string{label, percent(r.PFake), percent(r.PReal)}
}

func percent(p float64) string {
	return strconv.FormatFloat(p*100, 'f', 2, 64)
}

// score predicts one text and records the outcome.
func score(ctx context.Context, p Predictor, text string, opts Options) (predictor.Result, error) {
	start := time.Now()
	res, err := p.Predict(ctx, text, opts.Model)

	event := analytics.NewEvent(analytics.EventScored, opts.Model)
	event.Source = opts.Source
	event.TextChars = len(text)
	event.LatencyMs = time.Since(start).Milliseconds()
	status := "ok"
	if err != nil {
		status = "error"
		event.ErrorCode = apperrors.Code(err)
	} else {
		event.Label = res.Label.String()
		event.PFake = res.PFake
	}
	opts.Metrics.ObserveScored(opts.Source, status)
	if opts.Events != nil {
		opts.Events.Track(event)
	}
	return res, err
}
