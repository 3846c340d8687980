package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appconfig "github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/config"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
)

func TestSetupMetricsExposesBookingMetrics(t *testing.T) {
	handler, m := setupMetrics()
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.ObserveBookingAttempt(scheduling.KindSlotConflict)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "malaikasante_scheduling_booking_attempts_total") {
		t.Fatalf("expected booking attempts counter to be exported")
	}
}

func TestLoadAWSConfigSkippedWithoutQueue(t *testing.T) {
	awsCfg, err := loadAWSConfig(context.Background(), &appconfig.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg != nil {
		t.Fatalf("expected no AWS config without a queue")
	}
}

func TestLoadAWSConfigWithQueue(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:            "us-east-1",
		AWSAccessKeyID:       "test",
		AWSSecretAccessKey:   "test",
		AWSEndpointOverride:  "http://localhost:4566",
		NotificationQueueURL: "http://localhost:4566/000000000000/notifications",
	}
	awsCfg, err := loadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg == nil || awsCfg.Region != "us-east-1" {
		t.Fatalf("expected AWS config for us-east-1, got %+v", awsCfg)
	}
}
