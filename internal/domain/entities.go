package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Movie is one immutable catalog record.
type Movie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Year        int     `json:"year"`
	Runtime     string  `json:"runtime"`     // e.g. "2h 22m"
	Certificate *string `json:"certificate"` // nil when the dataset has none
	Metascore   *int    `json:"metascore"`   // nil when unrated
	IMDbRating  float64 `json:"imdb_rating"`
	Votes       Votes   `json:"votes"`
}

// CertificateLabel returns the certificate or "N/A"
func (m Movie) CertificateLabel() string {
	if m.Certificate == nil || *m.Certificate == "" {
		return "N/A"
	}
	return *m.Certificate
}

// MetascoreLabel returns the metascore or "N/A"
func (m Movie) MetascoreLabel() string {
	if m.Metascore == nil {
		return "N/A"
	}
	return strconv.Itoa(*m.Metascore)
}

// Subtitle returns the "#id | year" line shown under the title
func (m Movie) Subtitle() string {
	return fmt.Sprintf("#%d | %d", m.ID, m.Year)
}

// Summary returns the one-line metadata used in history listings
func (m Movie) Summary() string {
	return fmt.Sprintf("%d | %s | %s | IMDb %.1f | Metascore %s | Votes %s",
		m.Year, m.Runtime, m.CertificateLabel(), m.IMDbRating, m.MetascoreLabel(), m.Votes)
}

// Votes holds the vote count as the dataset displays it ("3.1M", "980K").
// Plain JSON numbers are accepted too.
type Votes string

// UnmarshalJSON accepts either a string or a number.
func (v *Votes) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case s == "null":
		*v = ""
	case strings.HasPrefix(s, `"`):
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("invalid votes %s: %w", s, err)
		}
		*v = Votes(unquoted)
	default:
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return fmt.Errorf("invalid votes %s: %w", s, err)
		}
		*v = Votes(s)
	}
	return nil
}

// MarshalJSON always writes the display string.
func (v Votes) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(v))), nil
}

func (v Votes) String() string {
	if v == "" {
		return "N/A"
	}
	return string(v)
}
