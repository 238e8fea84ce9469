package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"fieldreport/internal/backend"
	"fieldreport/internal/model"
)

// Error reports which export stage failed: read, serialize, or write.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("export failed (%s): %v", e.Stage, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

type Artifact struct {
	Name      string
	Path      string
	Rows      int
	CreatedAt time.Time
}

// Exporter snapshots a collection into an xlsx workbook under dir. Files are
// written atomically and registered only once complete, so a failed export
// never hands back a half-written artifact.
type Exporter struct {
	store backend.Store
	dir   string
	now   func() time.Time

	mu        sync.Mutex
	artifacts map[string]Artifact
}

func New(store backend.Store, dir string) *Exporter {
	return NewWithClock(store, dir, time.Now)
}

func NewWithClock(store backend.Store, dir string, now func() time.Time) *Exporter {
	return &Exporter{
		store:     store,
		dir:       dir,
		now:       now,
		artifacts: make(map[string]Artifact),
	}
}

// ExportLocations writes every location record to a "Locations" sheet.
func (e *Exporter) ExportLocations(ctx context.Context) (Artifact, error) {
	docs, err := e.store.Snapshot(ctx, backend.CollectionLocations)
	if err != nil {
		return Artifact{}, &Error{Stage: "read", Err: err}
	}

	now := e.now()
	rows := make([][]any, 0, len(docs))
	for _, doc := range docs {
		rec := model.DecodeLocation(doc, now)
		rows = append(rows, []any{
			rec.Username,
			rec.DeviceID,
			rec.InstalledAt,
			rec.Latitude,
			rec.Longitude,
			displayTime(rec.CapturedAt),
		})
	}

	header := []any{"Username", "UUID", "Installation Date", "Latitude", "Longitude", "Timestamp"}
	return e.write("Locations", "locations", header, rows)
}

// ExportPictures writes every media record to a "Pictures" sheet.
func (e *Exporter) ExportPictures(ctx context.Context) (Artifact, error) {
	docs, err := e.store.Snapshot(ctx, backend.CollectionPictures)
	if err != nil {
		return Artifact{}, &Error{Stage: "read", Err: err}
	}

	now := e.now()
	rows := make([][]any, 0, len(docs))
	for _, doc := range docs {
		rec := model.DecodeMedia(doc, now)
		rows = append(rows, []any{
			rec.Username,
			string(rec.Kind),
			rec.URL,
			displayTime(rec.CapturedAt),
		})
	}

	header := []any{"Username", "Media Type", "URL", "Timestamp"}
	return e.write("Pictures", "pictures", header, rows)
}

// displayTime renders a stored timestamp shifted into the fixed display
// offset. Cosmetic only; stored values are never shifted.
func displayTime(t time.Time) string {
	return t.In(model.DisplayZone).Format(model.DisplayTimeLayout)
}

func (e *Exporter) write(sheet, prefix string, header []any, rows [][]any) (Artifact, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return Artifact{}, &Error{Stage: "serialize", Err: err}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return Artifact{}, &Error{Stage: "serialize", Err: err}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return Artifact{}, &Error{Stage: "serialize", Err: err}
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return Artifact{}, &Error{Stage: "serialize", Err: err}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return Artifact{}, &Error{Stage: "serialize", Err: err}
	}

	createdAt := e.now()
	name := fmt.Sprintf("%s-%d.xlsx", prefix, createdAt.UnixMilli())
	path := filepath.Join(e.dir, name)
	if err := e.writeFile(path, buf.Bytes()); err != nil {
		return Artifact{}, &Error{Stage: "write", Err: err}
	}

	artifact := Artifact{Name: name, Path: path, Rows: len(rows), CreatedAt: createdAt}
	e.mu.Lock()
	e.artifacts[name] = artifact
	e.mu.Unlock()
	return artifact, nil
}

// writeFile lands the artifact via temp file and rename so readers never see
// a partial workbook.
func (e *Exporter) writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Artifacts lists completed exports, newest first.
func (e *Exporter) Artifacts() []Artifact {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := make([]Artifact, 0, len(e.artifacts))
	for _, a := range e.artifacts {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Name < result[j].Name
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (e *Exporter) Get(name string) (Artifact, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.artifacts[name]
	return a, ok
}
