package capture

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"fieldreport/internal/backend"
	"fieldreport/internal/identity"
	"fieldreport/internal/session"
	"fieldreport/internal/upload"
)

var (
	ErrAlreadyInProgress  = errors.New("a submission is already in progress")
	ErrServiceUnavailable = errors.New("location services are disabled")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrTimeout            = errors.New("operation timed out")
	ErrFileTooLarge       = errors.New("file exceeds the size limit")
	ErrNoPicker           = errors.New("media picker not configured")
)

const (
	DefaultFixTimeout    = 30 * time.Second
	DefaultProbeTimeout  = 10 * time.Second
	DefaultMaxVideoBytes = 50 << 20
)

// Pipeline submits location fixes and media captures as append-only records.
// One attempt per user action; failures are surfaced for the user to retry.
type Pipeline struct {
	identity    *identity.Store
	sessions    *session.Manager
	records     backend.Store
	uploader    upload.Uploader
	positioner  Positioner
	permissions Permissions
	picker      MediaPicker

	locationBusy atomic.Bool

	fixTimeout    time.Duration
	probeTimeout  time.Duration
	maxVideoBytes int64
}

type Options struct {
	Identity    *identity.Store
	Sessions    *session.Manager
	Records     backend.Store
	Uploader    upload.Uploader
	Positioner  Positioner
	Permissions Permissions
	Picker      MediaPicker

	FixTimeout    time.Duration
	ProbeTimeout  time.Duration
	MaxVideoBytes int64
}

func New(opts Options) *Pipeline {
	p := &Pipeline{
		identity:      opts.Identity,
		sessions:      opts.Sessions,
		records:       opts.Records,
		uploader:      opts.Uploader,
		positioner:    opts.Positioner,
		permissions:   opts.Permissions,
		picker:        opts.Picker,
		fixTimeout:    opts.FixTimeout,
		probeTimeout:  opts.ProbeTimeout,
		maxVideoBytes: opts.MaxVideoBytes,
	}
	if p.fixTimeout <= 0 {
		p.fixTimeout = DefaultFixTimeout
	}
	if p.probeTimeout <= 0 {
		p.probeTimeout = DefaultProbeTimeout
	}
	if p.maxVideoBytes <= 0 {
		p.maxVideoBytes = DefaultMaxVideoBytes
	}
	return p
}

// SubmitLocation acquires a fix from the configured positioner and appends a
// location record. Guarded: an overlapping call gets ErrAlreadyInProgress.
func (p *Pipeline) SubmitLocation(ctx context.Context) error {
	return p.SubmitLocationUsing(ctx, p.positioner)
}

// SubmitLocationUsing is SubmitLocation with a caller-supplied positioner,
// used by the HTTP surface where the device already acquired the fix.
func (p *Pipeline) SubmitLocationUsing(ctx context.Context, positioner Positioner) error {
	if !p.locationBusy.CompareAndSwap(false, true) {
		return ErrAlreadyInProgress
	}
	defer p.locationBusy.Store(false)

	enabled, err := positioner.ServiceEnabled(ctx)
	if err != nil {
		return fmt.Errorf("check location service: %w", err)
	}
	if !enabled {
		return ErrServiceUnavailable
	}
	if err := p.ensurePermission(ctx, CapabilityLocation); err != nil {
		return err
	}

	fixCtx, cancel := context.WithTimeout(ctx, p.fixTimeout)
	defer cancel()
	pos, err := positioner.Current(fixCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("acquire position: %w", err)
	}

	ident, err := p.identity.Ensure()
	if err != nil {
		return err
	}

	fields := backend.Document{
		"latitude":    pos.Latitude,
		"longitude":   pos.Longitude,
		"deviceId":    ident.ID,
		"installedAt": ident.InstalledAt,
	}
	p.attachSession(fields)

	if _, err := p.records.Append(ctx, backend.CollectionLocations, fields); err != nil {
		return fmt.Errorf("save location record: %w", err)
	}
	return nil
}

// attachSession adds the session credentials iff a session is active; records
// submitted while logged out carry no identity fields.
func (p *Pipeline) attachSession(fields backend.Document) {
	sess, ok := p.sessions.Current()
	if !ok {
		return
	}
	fields["username"] = sess.Username
	fields["secret"] = sess.Secret
}

func (p *Pipeline) ensurePermission(ctx context.Context, cap Capability) error {
	status, err := p.permissions.Status(ctx, cap)
	if err != nil {
		return fmt.Errorf("check %s permission: %w", cap, err)
	}
	switch status {
	case PermissionGranted:
		return nil
	case PermissionPermanentlyDenied:
		return ErrPermissionDenied
	}
	status, err = p.permissions.Request(ctx, cap)
	if err != nil {
		return fmt.Errorf("request %s permission: %w", cap, err)
	}
	if status != PermissionGranted {
		return ErrPermissionDenied
	}
	return nil
}
