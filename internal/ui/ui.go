package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Dmedina-coder/SuperGramola/internal/services"
	"github.com/Dmedina-coder/SuperGramola/internal/session"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ViewState represents the current view in the kiosk.
type ViewState int

const (
	GateView ViewState = iota
	PlaylistView
	DeviceView
	ActiveView
)

// overlayState is the modal sitting on top of [ActiveView], if any.
type overlayState int

const (
	overlayNone overlayState = iota
	overlaySearch
	overlayPayment
	overlayLock
)

// payment form field indices.
const (
	payFieldNumber = iota
	payFieldExpiry
	payFieldCVC
	payFieldName
	payFieldCount
)

// Model represents the kiosk application state.
type Model struct {
	ctx     context.Context
	coord   *session.Coordinator
	view    ViewState
	overlay overlayState
	width   int
	height  int

	playlistList list.Model
	deviceList   list.Model
	trackList    list.Model
	devices      []services.Device

	playback   session.PlaybackStatus
	playbackCh chan session.PlaybackStatus

	searchInput   textinput.Model
	searchList    list.Model
	searchResults []services.Track
	searchCh      chan searchResultsMsg

	payment    *session.PendingPayment
	capture    services.CardCapture
	payInputs  [payFieldCount]textinput.Model
	payFocus   int
	payErr     string
	confirming bool

	pinInput string
	lockErr  string

	gateErr error
	err     error
	help    help.Model
	keys    keyMap
}

type gateCheckedMsg struct{ err error }

type playlistsLoadedMsg struct {
	playlists []services.Playlist
	err       error
}

type devicesLoadedMsg struct {
	devices []services.Device
	err     error
}

type activeEnteredMsg struct {
	tracks []services.Track
	err    error
}

type tracksReloadedMsg struct {
	tracks []services.Track
	err    error
}

type playbackMsg session.PlaybackStatus

type searchResultsMsg struct {
	query  string
	tracks []services.Track
	err    error
}

type queueResultMsg struct {
	pending *session.PendingPayment
	capture services.CardCapture
	err     error
}

type paymentDoneMsg struct{ err error }

// NewModel creates a kiosk model. Attach must be called with the session
// coordinator before the program runs; PlaybackSink and SearchSink are the
// callbacks to hand the coordinator at construction.
func NewModel(ctx context.Context) *Model {
	m := &Model{
		ctx:        ctx,
		view:       GateView,
		playbackCh: make(chan session.PlaybackStatus, 8),
		searchCh:   make(chan searchResultsMsg, 8),
		help:       help.New(),
		keys:       newKeyMap(),
	}

	m.searchInput = textinput.New()
	m.searchInput.Placeholder = "Search for a track..."
	m.searchInput.CharLimit = 80

	placeholders := [payFieldCount]string{"Card number", "MM/YY", "CVC", "Name on card"}
	for i := range m.payInputs {
		m.payInputs[i] = textinput.New()
		m.payInputs[i].Placeholder = placeholders[i]
	}
	m.payInputs[payFieldNumber].CharLimit = 19
	m.payInputs[payFieldExpiry].CharLimit = 5
	m.payInputs[payFieldCVC].CharLimit = 4
	m.payInputs[payFieldCVC].EchoMode = textinput.EchoPassword

	return m
}

// Attach wires the coordinator the model drives.
func (m *Model) Attach(coord *session.Coordinator) { m.coord = coord }

// PlaybackSink returns the coordinator callback for poller updates. Updates
// are dropped rather than blocking the poller when the UI lags.
func (m *Model) PlaybackSink() func(session.PlaybackStatus) {
	return func(status session.PlaybackStatus) {
		select {
		case m.playbackCh <- status:
		default:
		}
	}
}

// SearchSink returns the coordinator callback for debounced search results.
func (m *Model) SearchSink() func(string, []services.Track, error) {
	return func(query string, tracks []services.Track, err error) {
		select {
		case m.searchCh <- searchResultsMsg{query: query, tracks: tracks, err: err}:
		default:
		}
	}
}

// Init runs the proximity gate and starts listening for background updates.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.checkGate(), m.waitForPlayback(), m.waitForSearch())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for _, l := range []*list.Model{&m.playlistList, &m.deviceList, &m.trackList, &m.searchList} {
			if l.Width() == 0 {
				l.SetSize(msg.Width-4, msg.Height-8)
			}
		}
		return m, nil

	case tea.KeyMsg:
		if m.overlay != overlayNone {
			return m.handleOverlayKeys(msg)
		}
		switch m.view {
		case GateView:
			return m.handleGateKeys(msg)
		case PlaylistView:
			return m.handlePlaylistKeys(msg)
		case DeviceView:
			return m.handleDeviceKeys(msg)
		case ActiveView:
			return m.handleActiveKeys(msg)
		}

	case gateCheckedMsg:
		m.gateErr = msg.err
		if msg.err != nil {
			return m, nil
		}
		return m, m.fetchPlaylists()

	case playlistsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		items := make([]list.Item, len(msg.playlists))
		for i, pl := range msg.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		m.playlistList = list.New(items, list.NewDefaultDelegate(), m.width-4, m.height-8)
		m.playlistList.Title = "Choose a playlist"
		// LoadPlaylists may have resumed a cached selection.
		if m.coord.SelectionStage() >= session.ChoosingDevice {
			m.view = DeviceView
			return m, m.fetchDevices()
		}
		m.view = PlaylistView
		return m, nil

	case devicesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.devices = msg.devices
		items := make([]list.Item, len(msg.devices))
		for i, d := range msg.devices {
			items[i] = deviceItem{device: d}
		}
		m.deviceList = list.New(items, list.NewDefaultDelegate(), m.width-4, m.height-8)
		m.deviceList.Title = "Choose a playback device"
		m.view = DeviceView
		return m, nil

	case activeEnteredMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.setTracks(msg.tracks)
		m.view = ActiveView
		return m, nil

	case tracksReloadedMsg:
		if msg.err == nil {
			m.setTracks(msg.tracks)
		}
		return m, nil

	case playbackMsg:
		m.playback = session.PlaybackStatus(msg)
		return m, m.waitForPlayback()

	case searchResultsMsg:
		cmd := m.waitForSearch()
		if msg.err != nil {
			return m, cmd
		}
		m.searchResults = msg.tracks
		items := make([]list.Item, len(msg.tracks))
		for i, t := range msg.tracks {
			items[i] = trackItem{track: t}
		}
		m.searchList = list.New(items, list.NewDefaultDelegate(), m.width-4, m.height-12)
		m.searchList.Title = "Results"
		m.searchList.SetShowHelp(false)
		return m, cmd

	case queueResultMsg:
		if msg.err != nil {
			m.err = msg.err
			m.closeSearch()
			return m, nil
		}
		if msg.pending == nil {
			// Free queue: done already.
			m.closeSearch()
			return m, m.reloadTracks()
		}
		m.payment = msg.pending
		m.capture = msg.capture
		m.payErr = ""
		if err := m.capture.Mount("payment-modal"); err != nil {
			m.err = err
			m.coord.CancelPayment()
			return m, nil
		}
		for i := range m.payInputs {
			m.payInputs[i].SetValue("")
			m.payInputs[i].Blur()
		}
		m.payFocus = payFieldNumber
		m.payInputs[payFieldNumber].Focus()
		m.overlay = overlayPayment
		return m, nil

	case paymentDoneMsg:
		m.confirming = false
		if msg.err != nil {
			if pending := m.coord.PaymentPending(); pending != nil && pending.FailureReason != "" {
				m.payErr = pending.FailureReason
			} else {
				m.payErr = msg.err.Error()
			}
			return m, nil
		}
		m.payment = nil
		m.capture = nil
		m.overlay = overlayNone
		m.closeSearch()
		return m, m.reloadTracks()
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.overlay == overlayLock {
		return m.renderLock()
	}
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.overlay {
	case overlaySearch:
		return m.renderSearch()
	case overlayPayment:
		return m.renderPayment()
	}

	switch m.view {
	case GateView:
		return m.renderGate()
	case PlaylistView:
		return m.renderList(&m.playlistList)
	case DeviceView:
		return m.renderDevices()
	case ActiveView:
		return m.renderActive()
	default:
		return ""
	}
}

func (m *Model) handleGateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.gateErr = nil
		return m, m.checkGate()
	}
	return m, nil
}

func (m *Model) handlePlaylistKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "ctrl+l":
		return m.openLock()
	case "enter":
		if item, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			if err := m.coord.ChoosePlaylist(item.playlist); err != nil {
				m.err = err
				return m, nil
			}
			return m, m.fetchDevices()
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleDeviceKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "ctrl+l":
		return m.openLock()
	case "r":
		return m, m.fetchDevices()
	case "enter":
		if item, ok := m.deviceList.SelectedItem().(deviceItem); ok {
			return m, m.chooseDevice(item.device)
		}
	}

	var cmd tea.Cmd
	m.deviceList, cmd = m.deviceList.Update(msg)
	return m, cmd
}

func (m *Model) handleActiveKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "ctrl+l":
		return m.openLock()
	case "/":
		m.overlay = overlaySearch
		m.searchInput.SetValue("")
		m.searchResults = nil
		m.searchInput.Focus()
		return m, textinput.Blink
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleOverlayKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.overlay {
	case overlaySearch:
		return m.handleSearchKeys(msg)
	case overlayPayment:
		return m.handlePaymentKeys(msg)
	case overlayLock:
		return m.handleLockKeys(msg)
	}
	return m, nil
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.closeSearch()
		return m, nil
	case "tab", "down":
		if len(m.searchResults) > 0 && m.searchInput.Focused() {
			m.searchInput.Blur()
			return m, nil
		}
	case "enter":
		if !m.searchInput.Focused() {
			if item, ok := m.searchList.SelectedItem().(trackItem); ok {
				return m, m.queueTrack(item.track)
			}
		}
	}

	if m.searchInput.Focused() {
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		m.coord.SearchInput(m.ctx, m.searchInput.Value())
		return m, cmd
	}

	var cmd tea.Cmd
	m.searchList, cmd = m.searchList.Update(msg)
	return m, cmd
}

func (m *Model) handlePaymentKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirming {
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.coord.CancelPayment()
		m.payment = nil
		m.capture = nil
		m.overlay = overlaySearch
		return m, nil
	case "tab", "down":
		m.focusPayField((m.payFocus + 1) % payFieldCount)
		return m, nil
	case "shift+tab", "up":
		m.focusPayField((m.payFocus + payFieldCount - 1) % payFieldCount)
		return m, nil
	case "enter":
		return m.submitPayment()
	}

	var cmd tea.Cmd
	m.payInputs[m.payFocus], cmd = m.payInputs[m.payFocus].Update(msg)
	return m, cmd
}

func (m *Model) handleLockKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	lock := m.coord.Lock()

	switch msg.String() {
	case "esc":
		// The overlay can only be dismissed while the lock is disengaged.
		if !lock.Engaged() {
			m.overlay = overlayNone
			m.pinInput = ""
			m.lockErr = ""
		}
		return m, nil
	case "backspace":
		if len(m.pinInput) > 0 {
			m.pinInput = m.pinInput[:len(m.pinInput)-1]
		}
		return m, nil
	case "enter":
		wasEngaged := lock.Engaged()
		if err := lock.Confirm(m.pinInput); err != nil {
			m.lockErr = err.Error()
			m.pinInput = ""
			return m, nil
		}
		m.pinInput = ""
		m.lockErr = ""
		if !wasEngaged {
			// Just engaged: stay on the overlay until unlocked.
			return m, nil
		}
		m.overlay = overlayNone
		return m, nil
	}

	m.pinInput = session.Sanitize(m.pinInput + msg.String())
	return m, nil
}

func (m *Model) openLock() (tea.Model, tea.Cmd) {
	m.overlay = overlayLock
	m.pinInput = ""
	m.lockErr = ""
	return m, nil
}

func (m *Model) closeSearch() {
	m.overlay = overlayNone
	m.searchInput.Blur()
	m.searchResults = nil
	m.coord.SearchInput(m.ctx, "")
}

func (m *Model) focusPayField(idx int) {
	m.payInputs[m.payFocus].Blur()
	m.payFocus = idx
	m.payInputs[m.payFocus].Focus()
}

func (m *Model) submitPayment() (tea.Model, tea.Cmd) {
	details, err := m.collectCardDetails()
	if err != nil {
		m.payErr = err.Error()
		return m, nil
	}
	m.capture.SetDetails(details)
	m.payErr = ""
	m.confirming = true
	name := m.payInputs[payFieldName].Value()
	return m, func() tea.Msg {
		return paymentDoneMsg{err: m.coord.ConfirmPayment(m.ctx, name)}
	}
}

func (m *Model) collectCardDetails() (services.CardDetails, error) {
	expiry := strings.SplitN(m.payInputs[payFieldExpiry].Value(), "/", 2)
	if len(expiry) != 2 {
		return services.CardDetails{}, fmt.Errorf("expiry must be MM/YY")
	}
	month, err := strconv.Atoi(strings.TrimSpace(expiry[0]))
	if err != nil {
		return services.CardDetails{}, fmt.Errorf("expiry must be MM/YY")
	}
	year, err := strconv.Atoi(strings.TrimSpace(expiry[1]))
	if err != nil {
		return services.CardDetails{}, fmt.Errorf("expiry must be MM/YY")
	}
	if year < 100 {
		year += 2000
	}

	return services.CardDetails{
		Number:   m.payInputs[payFieldNumber].Value(),
		ExpMonth: month,
		ExpYear:  year,
		CVC:      m.payInputs[payFieldCVC].Value(),
	}, nil
}

func (m *Model) setTracks(tracks []services.Track) {
	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = trackItem{track: t}
	}
	m.trackList = list.New(items, list.NewDefaultDelegate(), m.width-4, m.height-10)
	m.trackList.Title = "Session playlist"
	m.trackList.SetShowHelp(false)
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case DeviceView:
		m.deviceList, cmd = m.deviceList.Update(msg)
	case ActiveView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) checkGate() tea.Cmd {
	return func() tea.Msg {
		return gateCheckedMsg{err: m.coord.Begin(m.ctx)}
	}
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.coord.Playlists(m.ctx)
		return playlistsLoadedMsg{playlists: playlists, err: err}
	}
}

func (m *Model) fetchDevices() tea.Cmd {
	return func() tea.Msg {
		devices, err := m.coord.Devices(m.ctx)
		return devicesLoadedMsg{devices: devices, err: err}
	}
}

func (m *Model) chooseDevice(d services.Device) tea.Cmd {
	return func() tea.Msg {
		if err := m.coord.ChooseDevice(m.ctx, d); err != nil {
			return activeEnteredMsg{err: err}
		}
		tracks, err := m.coord.EnterActive(m.ctx)
		return activeEnteredMsg{tracks: tracks, err: err}
	}
}

func (m *Model) reloadTracks() tea.Cmd {
	return func() tea.Msg {
		tracks, err := m.coord.ReloadTracks(m.ctx)
		return tracksReloadedMsg{tracks: tracks, err: err}
	}
}

func (m *Model) queueTrack(track services.Track) tea.Cmd {
	return func() tea.Msg {
		pending, capture, err := m.coord.QueueTrack(m.ctx, track)
		return queueResultMsg{pending: pending, capture: capture, err: err}
	}
}

func (m *Model) waitForPlayback() tea.Cmd {
	return func() tea.Msg {
		return playbackMsg(<-m.playbackCh)
	}
}

func (m *Model) waitForSearch() tea.Cmd {
	return func() tea.Msg {
		return <-m.searchCh
	}
}

func (m *Model) renderGate() string {
	if m.gateErr != nil {
		body := styles.err.Render(m.gateErr.Error())
		return fmt.Sprintf("%s\n\n%s\n\n%s",
			styles.title.Render("Checking your location"),
			body,
			styles.help.Render("r retry • q quit"))
	}
	return fmt.Sprintf("%s\n\n%s",
		styles.title.Render("Checking your location"),
		"Verifying you are at the venue...")
}

func (m *Model) renderList(l *list.Model) string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", l.View(), helpView)
}

func (m *Model) renderDevices() string {
	if len(m.devices) == 0 {
		return fmt.Sprintf("%s\n\n%s\n\n%s",
			styles.title.Render("No playback devices found"),
			"Open the Spotify app on the venue's speaker or computer,\nthen refresh this list.",
			styles.help.Render("r refresh • esc back • q quit"))
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.deviceList.View(), helpView)
}

func (m *Model) renderActive() string {
	header := m.renderNowPlaying()
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.search, m.keys.lock, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s\n\n%s", header, m.trackList.View(), helpView)
}

func (m *Model) renderNowPlaying() string {
	now := m.playback.Now
	if now == nil || !now.IsPlaying {
		return styles.help.Render("Nothing playing right now")
	}
	return fmt.Sprintf("%s %s",
		styles.ok.Render("♪"),
		fmt.Sprintf("%s • %s", now.Title, now.Artist))
}

func (m *Model) renderSearch() string {
	var results string
	if len(m.searchResults) > 0 {
		results = "\n" + m.searchList.View()
	}
	body := fmt.Sprintf("%s\n%s%s",
		styles.title.Render("Add a track"),
		m.searchInput.View(),
		results)
	helpView := styles.help.Render("enter add • tab results • esc close")
	return styles.modal.Render(fmt.Sprintf("%s\n\n%s", body, helpView))
}

func (m *Model) renderPayment() string {
	title := styles.title.Render(fmt.Sprintf("Pay %.2f EUR to queue '%s'",
		float64(m.payment.AmountCents)/100, m.payment.TrackTitle))

	var fields strings.Builder
	for i := range m.payInputs {
		fields.WriteString(m.payInputs[i].View())
		fields.WriteString("\n")
	}

	status := ""
	if m.confirming {
		status = styles.warn.Render("Confirming payment...")
	} else if m.payErr != "" {
		status = styles.err.Render(m.payErr)
	}

	helpView := styles.help.Render("enter pay • tab next field • esc cancel")
	return styles.modal.Render(fmt.Sprintf("%s\n%s\n%s\n\n%s", title, fields.String(), status, helpView))
}

func (m *Model) renderLock() string {
	engaged := m.coord.Lock().Engaged()

	title := "Lock this screen"
	hint := "Enter a 4-digit PIN to lock the kiosk."
	if engaged {
		title = "Screen locked"
		hint = "Enter the PIN to unlock."
	}

	masked := strings.Repeat("•", len(m.pinInput)) + strings.Repeat("_", 4-len(m.pinInput))

	status := ""
	if m.lockErr != "" {
		status = "\n" + styles.err.Render(m.lockErr)
	}

	helpText := "enter confirm"
	if !engaged {
		helpText += " • esc cancel"
	}

	return styles.modal.Render(fmt.Sprintf("%s\n%s\n\n%s%s\n\n%s",
		styles.title.Render(title), hint, masked, status, styles.help.Render(helpText)))
}
