package holiday

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Siva2k2k/es-tm/internal/domain"
)

// publicHoliday is one element of the public holiday API response
type publicHoliday struct {
	Date      string `json:"date"`
	LocalName string `json:"localName"`
	Name      string `json:"name"`
	Global    bool   `json:"global"`
}

// parseHolidayJSON parses the holiday API response into a set of days
func parseHolidayJSON(data []byte) (map[time.Time]string, error) {
	var holidays []publicHoliday
	if err := json.Unmarshal(data, &holidays); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	days := make(map[time.Time]string, len(holidays))
	for _, h := range holidays {
		// Regional holidays do not close the company
		if !h.Global {
			continue
		}
		d, err := time.Parse(domain.DateLayout, h.Date)
		if err != nil {
			return nil, fmt.Errorf("parsing holiday date %q: %w", h.Date, err)
		}
		name := strings.TrimSpace(h.Name)
		if name == "" {
			name = strings.TrimSpace(h.LocalName)
		}
		days[domain.Day(d)] = name
	}
	return days, nil
}

// ParseDates parses a comma separated list of YYYY-MM-DD dates
func ParseDates(s string) ([]time.Time, error) {
	var dates []time.Time
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.Parse(domain.DateLayout, part)
		if err != nil {
			return nil, fmt.Errorf("parsing holiday %q: %w", part, err)
		}
		dates = append(dates, d)
	}
	return dates, nil
}
