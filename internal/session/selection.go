package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/Dmedina-coder/SuperGramola/internal/services"
	"github.com/Dmedina-coder/SuperGramola/internal/shared"
	"github.com/Dmedina-coder/SuperGramola/internal/store"
	"github.com/charmbracelet/log"
)

// Stage is the selection flow's position. Transitions are monotonic within a
// session: ChoosingPlaylist → ChoosingDevice → Active.
type Stage int

const (
	ChoosingPlaylist Stage = iota
	ChoosingDevice
	Active
)

func (s Stage) String() string {
	switch s {
	case ChoosingPlaylist:
		return "choosing_playlist"
	case ChoosingDevice:
		return "choosing_device"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Selection is the persisted playlist/device choice.
type Selection struct {
	PlaylistID   string
	PlaylistName string
	DeviceID     string
	DeviceName   string
}

// Machine is the three-stage selection state machine. The selected ids are
// persisted so a reload resumes at the last stage for the same session.
type Machine struct {
	mu            sync.Mutex
	stage         Stage
	selection     Selection
	svc           services.StreamingService
	store         *store.SessionStore
	logger        *log.Logger
	justActivated bool
}

// NewMachine creates a machine at ChoosingPlaylist.
func NewMachine(svc services.StreamingService, st *store.SessionStore, logger *log.Logger) *Machine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Machine{svc: svc, store: st, logger: logger}
}

// Stage returns the current stage.
func (m *Machine) Stage() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

// Selection returns a copy of the current selection.
func (m *Machine) Selection() Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selection
}

// LoadPlaylists lists the user's playlists. When a previously selected
// playlist id is cached and still present in the fresh list, the machine
// auto-advances to ChoosingDevice with it preselected (resume-on-reload).
func (m *Machine) LoadPlaylists(ctx context.Context) ([]services.Playlist, error) {
	playlists, err := m.svc.UserPlaylists(ctx)
	if err != nil {
		return nil, err
	}

	cachedID, cachedName, _, _ := m.store.Selection()
	if cachedID != "" {
		for _, pl := range playlists {
			if pl.ID == cachedID {
				m.logger.Info("resuming cached playlist selection", "playlist", cachedName)
				if err := m.ChoosePlaylist(pl); err != nil {
					return nil, err
				}
				break
			}
		}
	}

	return playlists, nil
}

// ChoosePlaylist records the selection and advances to ChoosingDevice.
func (m *Machine) ChoosePlaylist(pl services.Playlist) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stage > ChoosingDevice {
		return fmt.Errorf("%w: playlist already chosen", shared.ErrInvalidInput)
	}

	if err := m.store.SetSelectedPlaylist(pl.ID, pl.Name); err != nil {
		return err
	}
	m.selection.PlaylistID = pl.ID
	m.selection.PlaylistName = pl.Name
	m.stage = ChoosingDevice
	return nil
}

// LoadDevices lists the available playback devices. An empty list is not an
// error; the caller presents it as actionable guidance.
func (m *Machine) LoadDevices(ctx context.Context) ([]services.Device, error) {
	return m.svc.Devices(ctx)
}

// ChooseDevice activates the device best-effort and advances to Active.
// Activation failure does not block progress: the device may already be
// active, so the error is logged and the machine advances regardless.
func (m *Machine) ChooseDevice(ctx context.Context, d services.Device) error {
	m.mu.Lock()
	if m.stage != ChoosingDevice {
		m.mu.Unlock()
		return fmt.Errorf("%w: choose a playlist first", shared.ErrInvalidInput)
	}
	m.mu.Unlock()

	if err := m.svc.ActivateDevice(ctx, d.ID); err != nil {
		m.logger.Warn("device activation failed, continuing", "device", d.Name, "err", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SetSelectedDevice(d.ID, d.Name); err != nil {
		return err
	}
	m.selection.DeviceID = d.ID
	m.selection.DeviceName = d.Name
	m.stage = Active
	m.justActivated = true
	return nil
}

// EnterActive loads the selected playlist's tracks. On the transition that
// just activated a device it also starts playback; later refreshes reload
// tracks only and never restart playback.
func (m *Machine) EnterActive(ctx context.Context) ([]services.Track, error) {
	m.mu.Lock()
	if m.stage != Active {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: selection incomplete", shared.ErrInvalidInput)
	}
	sel := m.selection
	start := m.justActivated
	m.justActivated = false
	m.mu.Unlock()

	tracks, err := m.svc.PlaylistTracks(ctx, sel.PlaylistID)
	if err != nil {
		return nil, err
	}

	if start {
		if err := m.svc.StartPlayback(ctx, sel.PlaylistID, sel.DeviceID); err != nil {
			m.logger.Warn("failed to start playback", "playlist", sel.PlaylistName, "err", err)
		}
	}

	return tracks, nil
}
