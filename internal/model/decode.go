package model

import "time"

// Document decoding tolerates the field shapes left behind by older clients:
// strings may be missing, numbers may arrive as int or float, and capture
// times may be native timestamps, numeric epochs, or garbage. A malformed
// field degrades to a default; it never fails the record.

func DecodeLocation(doc map[string]any, now time.Time) LocationRecord {
	return LocationRecord{
		Username:    stringField(doc, "username", "Anonymous"),
		DeviceID:    stringField(doc, "deviceId", ""),
		InstalledAt: stringField(doc, "installedAt", ""),
		Latitude:    floatField(doc, "latitude"),
		Longitude:   floatField(doc, "longitude"),
		CapturedAt:  timeField(doc, "capturedAt", now),
	}
}

func DecodeMedia(doc map[string]any, now time.Time) MediaRecord {
	kind := MediaKind(stringField(doc, "mediaType", string(MediaImage)))
	if kind != MediaImage && kind != MediaVideo {
		kind = MediaImage
	}
	return MediaRecord{
		Username:   stringField(doc, "username", "Anonymous"),
		Kind:       kind,
		URL:        stringField(doc, "url", ""),
		CapturedAt: timeField(doc, "capturedAt", now),
	}
}

func stringField(doc map[string]any, key, fallback string) string {
	v, ok := doc[key].(string)
	if !ok || v == "" {
		return fallback
	}
	return v
}

func floatField(doc map[string]any, key string) float64 {
	switch v := doc[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// timeField accepts a native timestamp or a millisecond epoch; anything else
// (including a raw string) falls back to the decode-time clock.
func timeField(doc map[string]any, key string, now time.Time) time.Time {
	switch v := doc[key].(type) {
	case time.Time:
		return v
	case int64:
		return time.UnixMilli(v).UTC()
	case int:
		return time.UnixMilli(int64(v)).UTC()
	case float64:
		return time.UnixMilli(int64(v)).UTC()
	default:
		return now
	}
}
