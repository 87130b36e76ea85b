package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/tbourn/go-donation-tracker/internal/config"
)

// withGlobals restores the global provider and propagator after the test.
func withGlobals(t *testing.T) {
	t.Helper()
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

// stopOnCleanup shuts the provider down without waiting out export retries
// against the absent collector.
func stopOnCleanup(t *testing.T, shutdown func(context.Context) error) {
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_ = shutdown(ctx)
	})
}

func collectorConfig() config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "collector:4317",
		ServiceName: "donation-tracker",
		SampleRatio: 1,
	}
}

func TestTracer_NamespacesComponent(t *testing.T) {
	withGlobals(t)
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	for _, component := range []string{"export/Exporter", "services/DonationService"} {
		_, span := Tracer(component).Start(context.Background(), "op")
		span.End()
	}

	ended := rec.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d; want 2", len(ended))
	}
	if got := ended[0].InstrumentationScope().Name; got != "donations/export/Exporter" {
		t.Errorf("scope = %q", got)
	}
	if got := ended[1].InstrumentationScope().Name; got != "donations/services/DonationService" {
		t.Errorf("scope = %q", got)
	}
}

func TestTransportCredentials(t *testing.T) {
	cases := map[string]struct {
		insecure bool
		want     string
	}{
		"plaintext collector": {insecure: true, want: "insecure"},
		"tls collector":       {insecure: false, want: "tls"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := collectorConfig()
			cfg.Insecure = tc.insecure
			if got := transportCredentials(cfg).Info().SecurityProtocol; got != tc.want {
				t.Fatalf("protocol = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestSetupOTel_DisabledLeavesGlobalsAlone(t *testing.T) {
	withGlobals(t)
	before := otel.GetTracerProvider()

	cfg := collectorConfig()
	cfg.Enabled = false
	shutdown, err := SetupOTel(context.Background(), cfg, "v0")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatal("disabled tracing replaced the provider")
	}

	// Handlers still get a usable tracer.
	_, span := Tracer("http").Start(context.Background(), "noop")
	span.End()
}

func TestSetupOTel_InstallsProviderAndPropagators(t *testing.T) {
	withGlobals(t)

	var gotOpts int
	origClient := newOTLPClient
	t.Cleanup(func() { newOTLPClient = origClient })
	newOTLPClient = func(opts ...otlptracegrpc.Option) otlptrace.Client {
		gotOpts = len(opts)
		return origClient(opts...)
	}

	var gotService, gotVersion string
	origRes := newServiceResourceFn
	t.Cleanup(func() { newServiceResourceFn = origRes })
	newServiceResourceFn = func(ctx context.Context, serviceName, version string) (*resource.Resource, error) {
		gotService, gotVersion = serviceName, version
		return origRes(ctx, serviceName, version)
	}

	shutdown, err := SetupOTel(context.Background(), collectorConfig(), "v1.4.0")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	stopOnCleanup(t, shutdown)

	if gotOpts != 2 {
		t.Errorf("client options = %d; want endpoint and credentials", gotOpts)
	}
	if gotService != "donation-tracker" || gotVersion != "v1.4.0" {
		t.Errorf("resource = %q %q", gotService, gotVersion)
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("provider = %T", otel.GetTracerProvider())
	}

	// A donation request span propagates as a W3C traceparent.
	ctx, span := Tracer("http").Start(context.Background(), "POST /donations")
	defer span.End()
	if !span.SpanContext().IsSampled() {
		t.Fatal("ratio 1 should sample every span")
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if carrier.Get("traceparent") == "" {
		t.Fatalf("no traceparent injected: %v", carrier)
	}
}

func TestSetupOTel_ZeroRatioDropsRootSpans(t *testing.T) {
	withGlobals(t)

	cfg := collectorConfig()
	cfg.SampleRatio = 0
	shutdown, err := SetupOTel(context.Background(), cfg, "v0")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	stopOnCleanup(t, shutdown)

	_, span := Tracer("export/Exporter").Start(context.Background(), "Export")
	defer span.End()
	if span.SpanContext().IsSampled() {
		t.Fatal("ratio 0 sampled a root span")
	}
}

func TestSetupOTel_FailuresKeepPreviousProvider(t *testing.T) {
	cases := map[string]func(t *testing.T){
		"exporter": func(t *testing.T) {
			orig := newOTLPExporterFn
			t.Cleanup(func() { newOTLPExporterFn = orig })
			newOTLPExporterFn = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
				return nil, errors.New("collector unreachable")
			}
		},
		"resource": func(t *testing.T) {
			orig := newServiceResourceFn
			t.Cleanup(func() { newServiceResourceFn = orig })
			newServiceResourceFn = func(context.Context, string, string) (*resource.Resource, error) {
				return nil, errors.New("bad resource")
			}
		},
	}
	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			withGlobals(t)
			breakIt(t)
			before := otel.GetTracerProvider()

			if _, err := SetupOTel(context.Background(), collectorConfig(), "v0"); err == nil {
				t.Fatal("expected error")
			}
			if otel.GetTracerProvider() != before {
				t.Fatal("provider replaced on failure")
			}
		})
	}
}

func TestServiceResource_CarriesNameAndVersion(t *testing.T) {
	res, err := newServiceResourceFn(context.Background(), "donation-tracker", "v2.0.1")
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[string(semconv.ServiceNameKey)] != "donation-tracker" || attrs[string(semconv.ServiceVersionKey)] != "v2.0.1" {
		t.Fatalf("attributes = %v", attrs)
	}
}
