package capture

import (
	"context"

	"fieldreport/internal/model"
	"fieldreport/internal/upload"
)

type Position struct {
	Latitude  float64
	Longitude float64
}

// Positioner is the platform positioning collaborator. Current honors the
// context deadline; the pipeline distinguishes disabled service, denied
// permission, and timeout.
type Positioner interface {
	ServiceEnabled(ctx context.Context) (bool, error)
	Current(ctx context.Context) (Position, error)
}

// FixedPosition wraps an already-acquired fix as a Positioner; the HTTP
// surface uses it for fixes posted by the device.
type FixedPosition Position

func (f FixedPosition) ServiceEnabled(context.Context) (bool, error) { return true, nil }
func (f FixedPosition) Current(context.Context) (Position, error)   { return Position(f), nil }

type PermissionStatus int

const (
	PermissionGranted PermissionStatus = iota
	PermissionDenied
	PermissionPermanentlyDenied
)

type Capability string

const (
	CapabilityLocation   Capability = "location"
	CapabilityCamera     Capability = "camera"
	CapabilityMicrophone Capability = "microphone"
	CapabilityPhotos     Capability = "photos"
)

// Permissions is the runtime-permission collaborator.
type Permissions interface {
	Status(ctx context.Context, cap Capability) (PermissionStatus, error)
	Request(ctx context.Context, cap Capability) (PermissionStatus, error)
}

// OpenPermissions grants everything; used where the platform has no runtime
// permission model (the service deployment).
type OpenPermissions struct{}

func (OpenPermissions) Status(context.Context, Capability) (PermissionStatus, error) {
	return PermissionGranted, nil
}

func (OpenPermissions) Request(context.Context, Capability) (PermissionStatus, error) {
	return PermissionGranted, nil
}

// Mode is one of the four media capture modes.
type Mode string

const (
	ModePhotoCamera  Mode = "photo-camera"
	ModePhotoGallery Mode = "photo-gallery"
	ModeVideoCamera  Mode = "video-camera"
	ModeVideoGallery Mode = "video-gallery"
)

func (m Mode) Kind() model.MediaKind {
	if m == ModeVideoCamera || m == ModeVideoGallery {
		return model.MediaVideo
	}
	return model.MediaImage
}

// capabilities returns the runtime permissions the mode needs: camera (plus
// microphone for video) when capturing, photo-library access when browsing.
func (m Mode) capabilities() []Capability {
	switch m {
	case ModePhotoCamera:
		return []Capability{CapabilityCamera}
	case ModeVideoCamera:
		return []Capability{CapabilityCamera, CapabilityMicrophone}
	default:
		return []Capability{CapabilityPhotos}
	}
}

// MediaFile adds a bounded size probe to an uploadable file.
type MediaFile interface {
	upload.File
	Size(ctx context.Context) (int64, error)
}

// MediaPicker is the media-picker collaborator. picked=false means the user
// canceled, which is not an error.
type MediaPicker interface {
	Pick(ctx context.Context, mode Mode) (file MediaFile, picked bool, err error)
}
