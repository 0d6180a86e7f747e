package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"veristat/internal/status/models"
	"veristat/pkg/domain"
	"veristat/pkg/platform/sentinel"
)

// HTTPFetcher reads verification records from the KYC backend's REST API.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher constructs a fetcher against the given backend base URL.
// Every call is bounded by timeout; a timeout surfaces as a plain fetch error.
func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFetcher) FetchRecord(ctx context.Context, id domain.ClientID) (*models.VerificationRecord, error) {
	url := fmt.Sprintf("%s/clients/%s/verification", f.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build verification request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch verification record for client %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("verification record for client %s: %w", id, sentinel.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch verification record for client %s: unexpected status %d", id, resp.StatusCode)
	}

	var record models.VerificationRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decode verification record for client %s: %w", id, err)
	}
	return &record, nil
}
