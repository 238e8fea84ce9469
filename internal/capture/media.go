package capture

import (
	"context"
	"errors"
	"fmt"

	"fieldreport/internal/backend"
	"fieldreport/internal/model"
)

// SubmitMedia runs the interactive flow: permission for the chosen mode, the
// picker, then the size gate, upload, and record append. A canceled pick is a
// silent no-op.
func (p *Pipeline) SubmitMedia(ctx context.Context, mode Mode) error {
	if p.picker == nil {
		return ErrNoPicker
	}
	for _, cap := range mode.capabilities() {
		if err := p.ensurePermission(ctx, cap); err != nil {
			return err
		}
	}

	file, picked, err := p.picker.Pick(ctx, mode)
	if err != nil {
		return fmt.Errorf("pick media: %w", err)
	}
	if !picked {
		return nil
	}
	return p.SubmitMediaFile(ctx, file, mode.Kind())
}

// SubmitMediaFile is the non-interactive core: size-gate videos, upload, then
// append the media record. Upload failures and record-save failures stay
// distinguishable for the caller (errors.As *upload.Error vs. the wrapped
// store error), because "upload succeeded, save failed" leaves an orphaned
// remote file the user should know about.
func (p *Pipeline) SubmitMediaFile(ctx context.Context, file MediaFile, kind model.MediaKind) error {
	if kind == model.MediaVideo {
		probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
		size, err := file.Size(probeCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return ErrTimeout
			}
			return fmt.Errorf("probe file size: %w", err)
		}
		if size > p.maxVideoBytes {
			return ErrFileTooLarge
		}
	}

	url, err := p.uploader.Upload(ctx, file, kind)
	if err != nil {
		return err
	}

	fields := backend.Document{
		"url":       url,
		"mediaType": string(kind),
	}
	p.attachSession(fields)

	if _, err := p.records.Append(ctx, backend.CollectionPictures, fields); err != nil {
		return fmt.Errorf("save media record: %w", err)
	}
	return nil
}
