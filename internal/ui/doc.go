// Package ui implements the kiosk terminal interface using bubbletea's Elm
// architecture.
//
// The kiosk walks a fixed sequence of views:
//  1. [GateView] : proximity check against the venue's registered location
//  2. [PlaylistView] : choose the session playlist
//  3. [DeviceView] : choose the playback device (empty list shows guidance)
//  4. [ActiveView] : now-playing header, track list, queue actions
//
// Three overlays can sit on top of [ActiveView]: the debounced track search,
// the per-track payment form, and the PIN lock. While the lock overlay is up
// every other interaction is suspended.
//
// Playback updates arrive on a channel fed by the session poller, re-entering
// the Elm loop as messages. Keyboard navigation uses vim-style bindings with
// contextual help via charmbracelet/bubbles/help.
package ui
