package datajud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"marqlet-monitor/domain"
)

// Production search endpoints of the CNJ DataJud public API, one per
// supported tribunal.
var tribunalEndpoints = map[domain.Tribunal]string{
	domain.TribunalTJSP:  "https://api-publica.datajud.cnj.jus.br/api_publica_tjsp/_search",
	domain.TribunalTRT2:  "https://api-publica.datajud.cnj.jus.br/api_publica_trt2/_search",
	domain.TribunalTRT15: "https://api-publica.datajud.cnj.jus.br/api_publica_trt15/_search",
}

const defaultRequestTimeout = 30 * time.Second

// Client queries the DataJud docket search service.
type Client struct {
	apiKey     string
	httpClient *http.Client
	endpoints  map[domain.Tribunal]string
	logger     *log.Logger
}

// NewClient creates a DataJud client authenticated with the given API key.
func NewClient(apiKey string, logger *log.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		endpoints:  tribunalEndpoints,
		logger:     logger,
	}
}

// Movements fetches the docket for a process and returns its movement list.
// The process number may carry arbitrary punctuation; only its digits are
// sent to the search service. Every failure mode, transport error, non-2xx
// status or malformed body, degrades to an empty result: docket ingestion
// never fails the caller because the external service misbehaved.
func (c *Client) Movements(ctx context.Context, processNumber string, tribunal domain.Tribunal) []domain.Movement {
	endpoint, ok := c.endpoints[tribunal]
	if !ok {
		c.logger.WithField("tribunal", tribunal).Error("datajud: unsupported tribunal")
		return nil
	}

	clean := digitsOnly(processNumber)
	resp, err := c.search(ctx, endpoint, clean)
	if err != nil {
		c.logger.WithFields(log.Fields{
			"tribunal": tribunal,
			"process":  clean,
		}).WithError(err).Warn("datajud: search failed, treating as no new data")
		return nil
	}
	return extractMovements(resp)
}

func (c *Client) search(ctx context.Context, endpoint, processNumber string) (*searchResponse, error) {
	var body searchRequest
	body.Query.Match.ProcessNumber = processNumber
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "APIKey "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("datajud returned status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding datajud response: %w", err)
	}
	return &out, nil
}

func extractMovements(resp *searchResponse) []domain.Movement {
	if len(resp.Hits.Hits) == 0 {
		return nil
	}
	raw := resp.Hits.Hits[0].Source.Movements
	out := make([]domain.Movement, 0, len(raw))
	for _, m := range raw {
		mov := domain.Movement{
			Code:        m.Code,
			Name:        m.Name,
			RawDate:     m.Date,
			PublishedAt: parseMovementDate(m.Date),
		}
		for _, comp := range m.Complements {
			mov.Complements = append(mov.Complements, domain.MovementComplement{
				Name:  comp.Name,
				Value: fmt.Sprint(comp.Value),
			})
		}
		out = append(out, mov)
	}
	return out
}

// DataJud timestamps are usually RFC 3339 but occasionally arrive without a
// zone suffix.
func parseMovementDate(raw string) time.Time {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts
	}
	if ts, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return ts.UTC()
	}
	return time.Time{}
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
