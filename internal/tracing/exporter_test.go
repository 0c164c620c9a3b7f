package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestFileExporter_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "traces.jsonl")

	exp, err := NewFileExporter(path)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, exp.Shutdown(context.Background()))
	require.NoError(t, exp.Shutdown(context.Background()))
}

func TestFileExporter_WritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	exp, err := NewFileExporter(path)
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	tracer := tp.Tracer("test")
	ctx, parent := tracer.Start(context.Background(), "intent.connect")
	parent.SetAttributes(attribute.String(AttrIntentKind, "connect"))
	_, child := tracer.Start(ctx, "intent.connect_ack_success")
	child.AddEvent("mqtt.subscribe", trace.WithAttributes(attribute.Int("mqtt.request_id", 7)))
	child.SetStatus(codes.Error, "refused")
	child.End()
	parent.SetStatus(codes.Ok, "")
	parent.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var recs []SpanRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r SpanRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		recs = append(recs, r)
	}
	require.Len(t, recs, 2)

	require.Equal(t, "intent.connect_ack_success", recs[0].Name)
	require.Equal(t, "ERROR", recs[0].Status)
	require.Equal(t, "refused", recs[0].StatusMsg)
	require.Equal(t, recs[1].SpanID, recs[0].ParentSpanID)
	require.Len(t, recs[0].Events, 1)
	require.InDelta(t, 7, recs[0].Events[0].Attributes["mqtt.request_id"], 0)

	require.Equal(t, "OK", recs[1].Status)
	require.Equal(t, "connect", recs[1].Attributes[AttrIntentKind])
	require.Empty(t, recs[1].ParentSpanID)
}

func TestFileExporter_ExportAfterShutdown(t *testing.T) {
	exp, err := NewFileExporter(filepath.Join(t.TempDir(), "t.jsonl"))
	require.NoError(t, err)
	require.NoError(t, exp.Shutdown(context.Background()))

	tp := sdktrace.NewTracerProvider()
	_, span := tp.Tracer("test").Start(context.Background(), "x")
	span.End()
	ro := span.(sdktrace.ReadOnlySpan)
	require.ErrorIs(t, exp.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{ro}), os.ErrClosed)
}
