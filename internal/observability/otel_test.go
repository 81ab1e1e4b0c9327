package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tbourn/go-delivery-bot/internal/config"
)

func preserveOTelGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func enabled(name string, insecure bool) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    insecure,
		Endpoint:    "localhost:4317",
		ServiceName: name,
		SampleRatio: 1.0,
	}
}

func TestSetupOTel_Disabled_NoOp(t *testing.T) {
	preserveOTelGlobals(t)
	prev := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Enabled: false}, "v0")
	if err != nil || shutdown == nil {
		t.Fatalf("SetupOTel = (nil shutdown: %t), %v", shutdown == nil, err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
	if otel.GetTracerProvider() != prev {
		t.Fatalf("disabled setup replaced the provider")
	}
}

func TestSetupOTel_InstallsProvider(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		preserveOTelGlobals(t)
		shutdown, err := SetupOTel(context.Background(), enabled("bot", insecure), "v1.0.0")
		if err != nil {
			t.Fatalf("insecure=%v: %v", insecure, err)
		}
		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("insecure=%v: expected sdk provider", insecure)
		}
		_ = shutdown(context.Background())
	}
}

func TestSetupOTel_ErrorsLeaveGlobalsIntact(t *testing.T) {
	preserveOTelGlobals(t)
	origExp, origRes := newOTLPExporterFn, newServiceResourceFn
	t.Cleanup(func() { newOTLPExporterFn, newServiceResourceFn = origExp, origRes })

	prevTP := otel.GetTracerProvider()

	newOTLPExporterFn = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
		return nil, errors.New("exporter down")
	}
	if _, err := SetupOTel(context.Background(), enabled("bot", true), "v0"); err == nil {
		t.Fatalf("expected exporter error")
	}

	newOTLPExporterFn = origExp
	newServiceResourceFn = func(context.Context, string, string) (*resource.Resource, error) {
		return nil, errors.New("bad resource")
	}
	if _, err := SetupOTel(context.Background(), enabled("bot", true), "v0"); err == nil {
		t.Fatalf("expected resource error")
	}

	if otel.GetTracerProvider() != prevTP {
		t.Fatalf("tracer provider changed on failure")
	}
}

func TestStartAndFail(t *testing.T) {
	preserveOTelGlobals(t)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)

	_, span := Start(context.Background(), "orders", "Submit", attribute.Int64("user.id", 5))
	Fail(span, nil)
	Fail(span, errors.New("db locked"))
	span.End()

	ended := sr.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d", len(ended))
	}
	s := ended[0]
	if s.Name() != "orders/Submit" || s.Status().Code != codes.Error || len(s.Events()) != 1 {
		t.Fatalf("span = %s status=%v events=%d", s.Name(), s.Status(), len(s.Events()))
	}
}
