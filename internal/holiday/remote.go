package holiday

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Siva2k2k/es-tm/internal/domain"
)

// Remote implements Calendar against a Nager.Date compatible public holiday API
type Remote struct {
	baseURL string
	country string
	client  *http.Client

	mu    sync.Mutex
	years map[int]map[time.Time]string
}

// NewRemote creates a new Remote calendar for a country code such as "US" or "IN"
func NewRemote(baseURL string, country string) (*Remote, error) {
	if country == "" {
		return nil, fmt.Errorf("holiday country code is required")
	}
	if baseURL == "" {
		baseURL = "https://date.nager.at"
	}

	return &Remote{
		baseURL: baseURL,
		country: country,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		years: make(map[int]map[time.Time]string),
	}, nil
}

// IsHoliday reports whether date is a public holiday, fetching each year once
func (r *Remote) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	days, err := r.year(ctx, date.Year())
	if err != nil {
		return false, err
	}
	_, ok := days[domain.Day(date)]
	return ok, nil
}

func (r *Remote) year(ctx context.Context, year int) (map[time.Time]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if days, ok := r.years[year]; ok {
		return days, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/api/v3/PublicHolidays/%d/%s", r.baseURL, year, r.country)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling holiday API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading holiday API response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("holiday API error (status %d): %s", resp.StatusCode, string(body))
	}

	days, err := parseHolidayJSON(body)
	if err != nil {
		return nil, fmt.Errorf("parsing holidays: %w", err)
	}

	r.years[year] = days
	return days, nil
}
