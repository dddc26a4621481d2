package mailstore

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rbaliyan/mailstore/store"
)

func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestEngineTelemetry(t *testing.T) {
	ctx := context.Background()
	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	eng, sub := newTestEngine(t,
		WithOTel(true),
		WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))),
		WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))),
	)

	good := testLocator(1)
	bad := testLocator(2)
	if _, err := eng.Save(ctx, testInput(good)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	in := testInput(bad)
	in.Content = []byte("X-Other: 1\n\nanother body\n")
	in.DetectBodyStart()
	rec, err := eng.Save(ctx, in)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	sub.DropBlob(rec.BodyBlobID)

	results, err := eng.Retrieve(ctx, []store.MessageLocator{good, bad}, FetchFull)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 2 || results[0].Err != nil || results[1].Err == nil {
		t.Fatalf("results = %+v", results)
	}
	if _, err := eng.CollectAttachments(ctx); err != nil {
		t.Fatalf("CollectAttachments: %v", err)
	}
	if err := eng.Delete(ctx, good); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	wantSums := map[string]int64{
		"mailstore.save.count":         2,
		"mailstore.save.errors":        0,
		"mailstore.save.bytes":         int64(len(testContent) + len(in.Content)),
		"mailstore.retrieve.count":     1,
		"mailstore.retrieve.items":     1,
		"mailstore.retrieve.errors":    1,
		"mailstore.delete.count":       1,
		"mailstore.scan.pages":         1,
		"mailstore.consistency.faults": 1,
	}
	for name, want := range wantSums {
		if got := collectSum(t, reader, name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}

	names := map[string]int{}
	for _, s := range spans.Ended() {
		names[s.Name()]++
		if s.Status().Code == codes.Error {
			t.Errorf("span %s ended with error: %s", s.Name(), s.Status().Description)
		}
	}
	if names["mailstore.save"] != 2 || names["mailstore.retrieve"] != 1 || names["mailstore.delete"] != 1 {
		t.Errorf("spans = %v", names)
	}
}

func TestEngineTelemetryDisabled(t *testing.T) {
	ctx := context.Background()
	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	eng, _ := newTestEngine(t,
		WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))),
		WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))),
	)
	if _, err := eng.Save(ctx, testInput(testLocator(1))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n := len(spans.Ended()); n != 0 {
		t.Errorf("recorded %d spans with tracing disabled", n)
	}
	if got := collectSum(t, reader, "mailstore.save.count"); got != 0 {
		t.Errorf("save.count = %d with metrics disabled", got)
	}
}
