package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/enginemcp/broker/pkg/brokererr"
)

// connectionDoc is the minimal shape of the connection.json document an
// enterprise system's auth and controller endpoints are discovered from
// (EnterpriseSystemConfig.ConnectionJSONURL).
type connectionDoc struct {
	AuthHost       string `json:"auth_host"`
	AuthPort       int    `json:"auth_port"`
	ControllerHost string `json:"controller_host"`
	ControllerPort int    `json:"controller_port"`
}

var connectionDocClient = &http.Client{Timeout: 10 * time.Second}

// fetchConnectionDoc resolves an enterprise system's auth/controller
// endpoints by fetching and parsing its connection.json document.
func fetchConnectionDoc(ctx context.Context, url string) (*connectionDoc, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, brokererr.Wrap(brokererr.ConfigInvalid, err, "building connection.json request for %s", url)
	}

	resp, err := connectionDocClient.Do(req)
	if err != nil {
		return nil, brokererr.Wrap(brokererr.RemoteUnavailable, err, "fetching connection.json from %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, brokererr.New(brokererr.RemoteUnavailable, "connection.json fetch from %s returned status %d", url, resp.StatusCode)
	}

	var doc connectionDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, brokererr.Wrap(brokererr.RemoteRejected, err, "parsing connection.json from %s", url)
	}
	return &doc, nil
}
