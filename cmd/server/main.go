package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"fieldreport/internal/auth"
	"fieldreport/internal/backend"
	"fieldreport/internal/capture"
	"fieldreport/internal/config"
	"fieldreport/internal/export"
	"fieldreport/internal/handler"
	"fieldreport/internal/hub"
	"fieldreport/internal/identity"
	"fieldreport/internal/prefs"
	"fieldreport/internal/server"
	"fieldreport/internal/session"
	"fieldreport/internal/upload"
	"fieldreport/internal/view"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	gin.SetMode(cfg.GinMode)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		log.Fatal(err)
	}
	kv, err := prefs.Open(filepath.Join(cfg.DataDir, "prefs.db"))
	if err != nil {
		log.Fatal(err)
	}

	records := backend.New()
	identityStore := identity.New(kv)
	sessions := session.NewManager(kv, records)

	uploader, err := newUploader(cfg)
	if err != nil {
		log.Fatal(err)
	}

	pipeline := capture.New(capture.Options{
		Identity:    identityStore,
		Sessions:    sessions,
		Records:     records,
		Uploader:    uploader,
		Permissions: capture.OpenPermissions{},
	})

	exporter := export.New(records, filepath.Join(cfg.DataDir, "exports"))
	locations := view.Locations(records)
	pictures := view.Pictures(records)

	feedHub := hub.New()
	stopFeeds := handler.StartFeedBroadcasts(context.Background(), feedHub, locations, pictures)
	defer stopFeeds()

	tokenCfg := auth.TokenConfig{
		Secret: cfg.MasterSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: "fieldreport",
	}

	router := server.NewRouter(server.Deps{
		Identity:    identityStore,
		Sessions:    sessions,
		Pipeline:    pipeline,
		Exporter:    exporter,
		Locations:   locations,
		Pictures:    pictures,
		Hub:         feedHub,
		TokenConfig: tokenCfg,
	})

	log.Printf("listening on %s", fmt.Sprintf(":%d", cfg.Port))
	log.Fatal(server.Run(cfg, router))
}

func newUploader(cfg config.Config) (upload.Uploader, error) {
	switch cfg.UploadDriver {
	case "minio":
		return upload.NewMinioUploader(context.Background(), upload.MinioConfig{
			Endpoint:  cfg.MinioHost,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return &upload.HTTPUploader{
			BaseURL: cfg.UploadBaseURL,
			CloudID: cfg.UploadCloudID,
			Preset:  cfg.UploadPreset,
		}, nil
	}
}
