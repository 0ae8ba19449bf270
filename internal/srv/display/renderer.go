package display

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/srv/device"
	"github.com/jypelle/pishow/internal/srv/sequencer"
	"github.com/sirupsen/logrus"
)

// MediaLocator resolves where the player reads a media from.
type MediaLocator interface {
	MediaPath(media apimodel.MediaItem) string
	MediaFileExists(media apimodel.MediaItem) (bool, error)
}

// RemoteMedia streams media files from the pishow server publishing the
// playlist.
type RemoteMedia struct {
	baseUrl string
}

func NewRemoteMedia(baseUrl string) *RemoteMedia {
	return &RemoteMedia{baseUrl: strings.TrimRight(baseUrl, "/")}
}

func (m *RemoteMedia) MediaPath(media apimodel.MediaItem) string {
	return m.baseUrl + "/media/" + url.PathEscape(media.Filename)
}

// MediaFileExists trusts the remote side, a missing file surfaces as a player
// error.
func (m *RemoteMedia) MediaFileExists(media apimodel.MediaItem) (bool, error) {
	return true, nil
}

// PlayerRenderer shows playlist items through the player process. Images are
// held on screen until replaced, videos play once.
type PlayerRenderer struct {
	player  *device.Player
	locator MediaLocator
}

func NewPlayerRenderer(player *device.Player, locator MediaLocator) *PlayerRenderer {
	return &PlayerRenderer{player: player, locator: locator}
}

func (r *PlayerRenderer) Show(entry apimodel.PlaylistEntry, media apimodel.MediaItem, done func(sequencer.Signal)) error {
	exists, err := r.locator.MediaFileExists(media)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("media file %s missing", media.Filename)
	}

	options := device.PlayOptions{Source: apimodel.PlaybackSourcePlaylist}
	return r.player.Play(media, r.locator.MediaPath(media), options, func(err error) {
		if err != nil {
			logrus.Debugf("Playlist media %s ended with error: %v", media.Filename, err)
			done(sequencer.SignalError)
			return
		}
		done(sequencer.SignalEnded)
	})
}

func (r *PlayerRenderer) Clear() {
	r.player.Clear()
}
