package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldreport/internal/export"
)

type ExportHandler struct {
	Exporter *export.Exporter
}

func (h *ExportHandler) Run(c *gin.Context) {
	var (
		artifact export.Artifact
		err      error
	)
	switch c.Param("collection") {
	case "locations":
		artifact, err = h.Exporter.ExportLocations(c.Request.Context())
	case "pictures":
		artifact, err = h.Exporter.ExportPictures(c.Request.Context())
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown collection"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Export failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"artifact": encodeArtifact(artifact)})
}

func (h *ExportHandler) List(c *gin.Context) {
	artifacts := h.Exporter.Artifacts()
	resp := make([]gin.H, 0, len(artifacts))
	for _, a := range artifacts {
		resp = append(resp, encodeArtifact(a))
	}
	c.JSON(http.StatusOK, gin.H{"artifacts": resp})
}

func (h *ExportHandler) Download(c *gin.Context) {
	artifact, ok := h.Exporter.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Artifact not found"})
		return
	}
	c.FileAttachment(artifact.Path, artifact.Name)
}

func encodeArtifact(a export.Artifact) gin.H {
	return gin.H{
		"name":      a.Name,
		"rows":      a.Rows,
		"createdAt": a.CreatedAt.UnixMilli(),
	}
}
