package identity

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fieldreport/internal/model"
	"fieldreport/internal/prefs"
)

// Store bootstraps and returns the durable per-installation identity. The
// identity is created once and never changes; if local storage fails, the
// error is surfaced rather than fabricating a transient identity, which would
// desynchronize historical records from future ones.
type Store struct {
	mu  sync.Mutex
	kv  prefs.KV
	now func() time.Time
}

func New(kv prefs.KV) *Store {
	return NewWithClock(kv, time.Now)
}

func NewWithClock(kv prefs.KV, now func() time.Time) *Store {
	return &Store{kv: kv, now: now}
}

// Ensure returns the persisted identity, creating it on first call. A legacy
// state with a UUID but no installation date is healed by stamping a date in
// without touching the UUID.
func (s *Store) Ensure() (model.DeviceIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok, err := s.kv.Get(prefs.KeyDeviceUUID)
	if err != nil {
		return model.DeviceIdentity{}, fmt.Errorf("read device uuid: %w", err)
	}
	if !ok {
		id = uuid.NewString()
		if err := s.kv.Set(prefs.KeyDeviceUUID, id); err != nil {
			return model.DeviceIdentity{}, fmt.Errorf("persist device uuid: %w", err)
		}
	}

	installedAt, ok, err := s.kv.Get(prefs.KeyInstallationDate)
	if err != nil {
		return model.DeviceIdentity{}, fmt.Errorf("read installation date: %w", err)
	}
	if !ok {
		installedAt = s.now().In(model.DisplayZone).Format(model.DisplayTimeLayout)
		if err := s.kv.Set(prefs.KeyInstallationDate, installedAt); err != nil {
			return model.DeviceIdentity{}, fmt.Errorf("persist installation date: %w", err)
		}
	}

	return model.DeviceIdentity{ID: id, InstalledAt: installedAt}, nil
}
