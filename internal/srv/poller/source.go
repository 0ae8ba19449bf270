package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jypelle/pishow/apimodel"
)

// HTTPSource reads the active playlist from a remote pishow backend.
type HTTPSource struct {
	baseUrl string
	client  *http.Client
}

func NewHTTPSource(baseUrl string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		baseUrl: strings.TrimRight(baseUrl, "/"),
		client:  client,
	}
}

func (s *HTTPSource) Playlist(ctx context.Context) (apimodel.Playlist, error) {
	var playlist apimodel.Playlist

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseUrl+"/api/playlist", nil)
	if err != nil {
		return playlist, fmt.Errorf("unable to build playlist request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return playlist, fmt.Errorf("unable to reach %s: %w", s.baseUrl, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return playlist, fmt.Errorf("playlist endpoint answered %s", resp.Status)
	}
	if err = json.NewDecoder(resp.Body).Decode(&playlist); err != nil {
		return playlist, fmt.Errorf("malformed playlist: %w", err)
	}
	if err = playlist.Validate(); err != nil {
		return playlist, fmt.Errorf("malformed playlist: %w", err)
	}
	return playlist, nil
}
