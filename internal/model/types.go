package model

import "time"

// DisplayZone is the fixed UTC+4 offset used for human-readable timestamps
// (installation dates and exported rows). Stored values stay in UTC.
var DisplayZone = time.FixedZone("UTC+4", 4*60*60)

// DisplayTimeLayout renders installation dates and exported timestamp cells.
const DisplayTimeLayout = "2006-01-02 15:04:05"

type DeviceIdentity struct {
	ID          string
	InstalledAt string
}

// Session lives in process memory only; it never survives a restart.
type Session struct {
	Username  string
	Secret    string
	IsPrimary bool
}

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

type LocationRecord struct {
	Username    string
	DeviceID    string
	InstalledAt string
	Latitude    float64
	Longitude   float64
	CapturedAt  time.Time
}

type MediaRecord struct {
	Username   string
	Kind       MediaKind
	URL        string
	CapturedAt time.Time
}
