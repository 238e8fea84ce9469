package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldreport/internal/model"
	"fieldreport/internal/view"
)

type RecordsHandler struct {
	Locations *view.Feed[model.LocationRecord]
	Pictures  *view.Feed[model.MediaRecord]
}

func (h *RecordsHandler) ListLocations(c *gin.Context) {
	records, err := h.Locations.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Record store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": encodeLocations(records)})
}

func (h *RecordsHandler) ListPictures(c *gin.Context) {
	records, err := h.Pictures.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Record store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": encodeMedia(records)})
}

func encodeLocations(records []model.LocationRecord) []gin.H {
	out := make([]gin.H, 0, len(records))
	for _, r := range records {
		out = append(out, gin.H{
			"username":    r.Username,
			"deviceId":    r.DeviceID,
			"installedAt": r.InstalledAt,
			"latitude":    r.Latitude,
			"longitude":   r.Longitude,
			"capturedAt":  r.CapturedAt.UnixMilli(),
		})
	}
	return out
}

func encodeMedia(records []model.MediaRecord) []gin.H {
	out := make([]gin.H, 0, len(records))
	for _, r := range records {
		out = append(out, gin.H{
			"username":   r.Username,
			"mediaType":  string(r.Kind),
			"url":        r.URL,
			"capturedAt": r.CapturedAt.UnixMilli(),
		})
	}
	return out
}
