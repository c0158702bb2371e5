// Package transformer is the text-native classifier: a client for a remote
// sequence-classification endpoint (Hugging Face inference style). It
// bypasses the TF-IDF vocabulary entirely and owns its own truncation.
package transformer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Fake-News-Detection-Platform/pkg/resilience"
)

const Family = classifier.Transformer

// Manifest is the persisted description of a remote model. Credentials are
// never part of it.
type Manifest struct {
	Endpoint      string `json:"endpoint"`
	ModelName     string `json:"model_name"`
	PositiveLabel string `json:"positive_label"`
	MaxTokens     int    `json:"max_tokens"`
}

type Options struct {
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Breaker    resilience.CircuitBreakerConfig
}

type Client struct {
	manifest Manifest
	apiKey   string
	http     *http.Client
	breaker  *resilience.CircuitBreaker
}

var _ classifier.TextModel = (*Client)(nil)

func New(m Manifest, opts Options) (*Client, error) {
	if m.Endpoint == "" {
		return nil, fmt.Errorf("transformer endpoint is required")
	}
	if m.MaxTokens <= 0 {
		m.MaxTokens = 512
	}
	if m.PositiveLabel == "" {
		m.PositiveLabel = "LABEL_1"
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	if opts.Breaker.Ignore == nil {
		// A caller abandoning the request says nothing about the server.
		opts.Breaker.Ignore = func(err error) bool { return errors.Is(err, context.Canceled) }
	}
	return &Client{
		manifest: m,
		apiKey:   opts.APIKey,
		http:     hc,
		breaker:  resilience.NewCircuitBreaker("transformer", opts.Breaker),
	}, nil
}

func (c *Client) Family() string            { return Family }
func (c *Client) Kind() classifier.Kind     { return classifier.KindText }
func (c *Client) VocabularyVersion() string { return "" }
func (c *Client) Payload() any              { return c.manifest }
func (c *Client) Manifest() Manifest        { return c.manifest }

// BreakerState exposes the circuit state for metrics.
func (c *Client) BreakerState() resilience.State { return c.breaker.GetState() }

// Truncate keeps the first max whitespace-separated tokens of text.
func Truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	fields := strings.Fields(text)
	if len(fields) <= max {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:max], " ")
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// PredictText scores cleaned text remotely. Remote failures, a tripped
// breaker or an unusable response are returned as errors; the predictor
// maps them to an inference failure.
func (c *Client) PredictText(ctx context.Context, cleaned string) (classifier.Probabilities, error) {
	body, err := json.Marshal(map[string]any{
		"inputs":  Truncate(cleaned, c.manifest.MaxTokens),
		"model":   c.manifest.ModelName,
		"options": map[string]bool{"wait_for_model": true},
	})
	if err != nil {
		return classifier.Probabilities{}, fmt.Errorf("marshal payload: %w", err)
	}

	var scores []labelScore
	err = c.breaker.Execute(func() error {
		var callErr error
		scores, callErr = c.post(ctx, body)
		return callErr
	})
	if err != nil {
		return classifier.Probabilities{}, err
	}
	return c.interpret(scores)
}

func (c *Client) post(ctx context.Context, body []byte) ([]labelScore, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.manifest.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return parseScores(data)
}

// parseScores accepts both the flat [{label,score}] and the batched
// [[{label,score}]] response shapes.
func parseScores(data []byte) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(data, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}
	var flat []labelScore
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return flat, nil
}

func (c *Client) interpret(scores []labelScore) (classifier.Probabilities, error) {
	if len(scores) == 0 {
		return classifier.Probabilities{}, fmt.Errorf("empty response from transformer")
	}
	for _, s := range scores {
		if s.Label == c.manifest.PositiveLabel {
			return classifier.FromFake(s.Score), nil
		}
	}
	// Only the negative class was reported; its complement is P(FAKE).
	if len(scores) == 1 {
		return classifier.FromFake(1 - scores[0].Score), nil
	}
	return classifier.Probabilities{}, fmt.Errorf("positive label %q missing from response", c.manifest.PositiveLabel)
}

// NewDecoder returns a classifier.Decoder that rebuilds clients from
// manifests using the given runtime options.
func NewDecoder(opts Options) classifier.Decoder {
	return func(meta artifact.Meta, raw json.RawMessage) (classifier.Artifact, error) {
		var m Manifest
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("parsing transformer manifest: %w", err)
		}
		return New(m, opts)
	}
}
