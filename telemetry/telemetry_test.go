package telemetry

import (
	"context"
	"testing"
)

func TestCorrelationRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("empty context correlation = %q", got)
	}
	ctx = WithCorrelation(ctx, "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("correlation = %q", got)
	}
}

func TestLoggerWithCorrNeverNil(t *testing.T) {
	if LoggerWithCorr(context.Background()) == nil {
		t.Fatal("logger must not be nil without a correlation id")
	}
	ctx := WithCorrelation(context.Background(), "abc-123")
	if LoggerWithCorr(ctx) == nil {
		t.Fatal("logger must not be nil with a correlation id")
	}
}

// The counter helpers are nil-safe so code paths can fire them before Init.
func TestMetricHelpersBeforeInit(t *testing.T) {
	IncTick()
	IncTickSkipped()
	IncPollError()
	IncTransition("went_live")
	IncDispatchFailure("create")
	ObserveTickDuration(0)
	SetLiveWatches(3)
}
