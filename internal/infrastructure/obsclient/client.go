// Package obsclient implements the observation-store read contract over an
// HTTP data-access API, for deployments where the engine does not get a
// direct database connection.
package obsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"beacon/internal/domain/model"
)

// Client satisfies core.ObservationStore against the surrounding
// application's data-access API.
type Client struct {
	baseURL string
	client  *http.Client
}

// New builds a Client for the given base URL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListPlaces fetches every place from GET /places.
func (c *Client) ListPlaces(ctx context.Context) ([]model.Place, error) {
	var places []model.Place
	if err := c.getJSON(ctx, "/places", nil, &places); err != nil {
		return nil, errors.Wrap(err, "fetching places")
	}
	return places, nil
}

// ListEstimates fetches the estimate history for the given places in one
// request and groups it by place.
func (c *Client) ListEstimates(ctx context.Context, placeIDs []int64) (map[int64][]model.ColonyEstimate, error) {
	ids := make([]string, len(placeIDs))
	for i, id := range placeIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	params := url.Values{"place_ids": {strings.Join(ids, ",")}}

	var estimates []model.ColonyEstimate
	if err := c.getJSON(ctx, "/colony-estimates", params, &estimates); err != nil {
		return nil, errors.Wrap(err, "fetching colony estimates")
	}

	byPlace := make(map[int64][]model.ColonyEstimate, len(placeIDs))
	for _, est := range estimates {
		byPlace[est.PlaceID] = append(byPlace[est.PlaceID], est)
	}
	return byPlace, nil
}

// ListAppointments fetches clinical appointments on or after since.
func (c *Client) ListAppointments(ctx context.Context, since time.Time) ([]model.Appointment, error) {
	params := url.Values{"since": {since.Format(time.RFC3339)}}

	var appointments []model.Appointment
	if err := c.getJSON(ctx, "/appointments", params, &appointments); err != nil {
		return nil, errors.Wrap(err, "fetching appointments")
	}
	return appointments, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "requesting %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("observation store returned status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, fmt.Sprintf("decoding %s response", path))
	}
	return nil
}
