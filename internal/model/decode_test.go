package model

import (
	"testing"
	"time"
)

func TestDecodeLocation_Defaults(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := DecodeLocation(map[string]any{}, now)
	if rec.Username != "Anonymous" {
		t.Fatalf("expected Anonymous, got %q", rec.Username)
	}
	if !rec.CapturedAt.Equal(now) {
		t.Fatalf("expected now fallback, got %v", rec.CapturedAt)
	}
	if rec.Latitude != 0 || rec.Longitude != 0 {
		t.Fatalf("expected zero coordinates")
	}
}

func TestDecodeLocation_Fields(t *testing.T) {
	now := time.Now()
	captured := time.Date(2024, 2, 10, 8, 30, 0, 0, time.UTC)

	rec := DecodeLocation(map[string]any{
		"username":    "alice",
		"deviceId":    "dev-1",
		"installedAt": "2024-01-01 10:00:00",
		"latitude":    25.2,
		"longitude":   55.3,
		"capturedAt":  captured,
	}, now)

	if rec.Username != "alice" || rec.DeviceID != "dev-1" {
		t.Fatalf("unexpected identity fields: %+v", rec)
	}
	if rec.Latitude != 25.2 || rec.Longitude != 55.3 {
		t.Fatalf("unexpected coordinates: %+v", rec)
	}
	if !rec.CapturedAt.Equal(captured) {
		t.Fatalf("expected %v, got %v", captured, rec.CapturedAt)
	}
}

func TestDecodeLocation_EpochMillis(t *testing.T) {
	now := time.Now()
	millis := int64(1709290800000)

	rec := DecodeLocation(map[string]any{"capturedAt": millis}, now)
	if !rec.CapturedAt.Equal(time.UnixMilli(millis).UTC()) {
		t.Fatalf("expected epoch decode, got %v", rec.CapturedAt)
	}

	rec = DecodeLocation(map[string]any{"capturedAt": float64(millis)}, now)
	if !rec.CapturedAt.Equal(time.UnixMilli(millis).UTC()) {
		t.Fatalf("expected float epoch decode, got %v", rec.CapturedAt)
	}
}

func TestDecodeLocation_GarbageTimestamp(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := DecodeLocation(map[string]any{"capturedAt": "yesterday-ish"}, now)
	if !rec.CapturedAt.Equal(now) {
		t.Fatalf("expected now fallback for garbage timestamp, got %v", rec.CapturedAt)
	}
}

func TestDecodeMedia_Defaults(t *testing.T) {
	now := time.Now()

	rec := DecodeMedia(map[string]any{"url": "https://cdn/x.jpg"}, now)
	if rec.Kind != MediaImage {
		t.Fatalf("expected image default, got %q", rec.Kind)
	}
	if rec.Username != "Anonymous" {
		t.Fatalf("expected Anonymous, got %q", rec.Username)
	}

	rec = DecodeMedia(map[string]any{"mediaType": "hologram"}, now)
	if rec.Kind != MediaImage {
		t.Fatalf("expected image fallback for unknown kind, got %q", rec.Kind)
	}

	rec = DecodeMedia(map[string]any{"mediaType": "video"}, now)
	if rec.Kind != MediaVideo {
		t.Fatalf("expected video, got %q", rec.Kind)
	}
}
