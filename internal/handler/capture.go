package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldreport/internal/backend"
	"fieldreport/internal/capture"
	"fieldreport/internal/model"
	"fieldreport/internal/upload"
)

type CaptureHandler struct {
	Pipeline *capture.Pipeline
}

type locationBody struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// SubmitLocation runs the pipeline with the fix the device posted. The
// pipeline's guard still applies, so overlapping submissions get 409.
func (h *CaptureHandler) SubmitLocation(c *gin.Context) {
	var body locationBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Latitude == nil || body.Longitude == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude are required"})
		return
	}

	pos := capture.FixedPosition{Latitude: *body.Latitude, Longitude: *body.Longitude}
	err := h.Pipeline.SubmitLocationUsing(c.Request.Context(), pos)
	if err != nil {
		status, msg := captureErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SubmitMedia accepts the picked file as multipart form data with a "kind"
// field. Upload failure and record-save failure are reported distinctly so
// the caller can tell "upload failed" from "upload succeeded, save failed".
func (h *CaptureHandler) SubmitMedia(c *gin.Context) {
	kind := model.MediaKind(c.PostForm("kind"))
	if kind != model.MediaImage && kind != model.MediaVideo {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be image or video"})
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	err = h.Pipeline.SubmitMediaFile(c.Request.Context(), formMedia{fh}, kind)
	if err != nil {
		var upErr *upload.Error
		if errors.As(err, &upErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Upload failed", "statusCode": upErr.StatusCode})
			return
		}
		if errors.Is(err, backend.ErrUnavailable) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload succeeded but saving the record failed"})
			return
		}
		status, msg := captureErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func captureErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, capture.ErrAlreadyInProgress):
		return http.StatusConflict, "A submission is already in progress"
	case errors.Is(err, capture.ErrPermissionDenied):
		return http.StatusForbidden, "Permission denied"
	case errors.Is(err, capture.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "Location services are disabled"
	case errors.Is(err, capture.ErrTimeout):
		return http.StatusGatewayTimeout, "Operation timed out"
	case errors.Is(err, capture.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "File exceeds the 50 MiB limit"
	case errors.Is(err, backend.ErrUnavailable):
		return http.StatusInternalServerError, "Saving the record failed"
	default:
		return http.StatusInternalServerError, "Submission failed"
	}
}

// formMedia adapts a multipart file header to the pipeline's MediaFile; the
// size is already known, so the probe returns immediately.
type formMedia struct {
	fh *multipart.FileHeader
}

func (f formMedia) Name() string { return f.fh.Filename }

func (f formMedia) Open() (io.ReadCloser, error) { return f.fh.Open() }

func (f formMedia) Size(context.Context) (int64, error) { return f.fh.Size, nil }
