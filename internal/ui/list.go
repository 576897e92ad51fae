package ui

import (
	"fmt"

	"github.com/Dmedina-coder/SuperGramola/internal/services"
	"github.com/charmbracelet/bubbles/list"
)

var (
	_ list.Item = playlistItem{}
	_ list.Item = deviceItem{}
	_ list.Item = trackItem{}
)

// playlistItem wraps [services.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist services.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.TrackCount)
	if i.playlist.OwnerID != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.OwnerID)
	}
	return desc
}

// deviceItem wraps [services.Device] to implement [list.Item].
type deviceItem struct {
	device services.Device
}

func (i deviceItem) FilterValue() string { return i.device.Name }
func (i deviceItem) Title() string       { return i.device.Name }
func (i deviceItem) Description() string {
	desc := i.device.Type
	if i.device.Active {
		desc = fmt.Sprintf("%s • active", desc)
	}
	return desc
}

// trackItem wraps [services.Track] to implement [list.Item].
type trackItem struct {
	track services.Track
}

func (i trackItem) FilterValue() string { return i.track.Title }
func (i trackItem) Title() string       { return i.track.Title }
func (i trackItem) Description() string {
	desc := i.track.Artist
	if i.track.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album)
	}
	return desc
}
