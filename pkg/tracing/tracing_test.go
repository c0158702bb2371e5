package tracing

import (
	"context"
	"testing"
)

func TestTracerSampling(t *testing.T) {
	ctx := context.Background()
	if _, s := NewTracer(false, 1).Start(ctx, "predict", "r1"); s != nil {
		t.Error("disabled tracer produced a span")
	}
	if _, s := NewTracer(true, 0).Start(ctx, "predict", "r1"); s != nil {
		t.Error("zero sample rate produced a span")
	}
	var nilTracer *Tracer
	if _, s := nilTracer.Start(ctx, "predict", "r1"); s != nil {
		t.Error("nil tracer produced a span")
	}
	ctx, root := NewTracer(true, 1).Start(ctx, "predict", "r1")
	if root == nil || SpanFromContext(ctx) != root {
		t.Fatal("sampled request has no root span in context")
	}
}

func TestChildSpans(t *testing.T) {
	tr := NewTracer(true, 1)
	ctx, root := tr.Start(context.Background(), "predict", "trace-1")
	_, clean := StartChildSpan(ctx, "clean")
	clean.SetAttr("chars", 42)
	clean.End()
	_, score := StartChildSpan(ctx, "score")
	score.End()
	tr.Finish(root)

	if len(root.Children) != 2 {
		t.Fatalf("root has %d children", len(root.Children))
	}
	if root.Children[0].TraceID != "trace-1" || root.Children[0].Attrs["chars"] != 42 {
		t.Errorf("child = %+v", root.Children[0])
	}
	if root.Duration < root.Children[1].Duration {
		t.Error("root shorter than child")
	}
}

func TestNilSpanIsNoop(t *testing.T) {
	ctx, child := StartChildSpan(context.Background(), "orphan")
	if child != nil || SpanFromContext(ctx) != nil {
		t.Fatal("orphan child span created")
	}
	child.SetAttr("k", "v")
	child.End()
	child.Log()
	NewTracer(true, 1).Finish(nil)
}
