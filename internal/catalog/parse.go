package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mmcdole/pickflix/internal/domain"
)

// maxReportedErrors caps how many parse problems ParseListing reports
const maxReportedErrors = 10

var (
	entryRe = regexp.MustCompile(`^(\d+)\.\s+(.*)`)
	infoRe  = regexp.MustCompile(`^(\d{4})(\d+h(?: \d+m)?|\d+m)`)
	votesRe = regexp.MustCompile(`\(([^)]+)\)`)
	digitRe = regexp.MustCompile(`(\d+)$`)
)

// ParseListing parses the raw ranked listing copied from a top-movies page.
// Each entry spans four non-empty lines:
//
//	1. The Shawshank Redemption
//	19942h 22mR82Metascore
//	9.3
//	(3.1M)
//
// The info line glues year, runtime, certificate and metascore together.
func ParseListing(r io.Reader) ([]domain.Movie, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read listing: %w", err)
	}

	var (
		movies []domain.Movie
		errs   []string
	)

	for i := 0; i < len(lines); {
		m := entryRe.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			i++
			continue
		}

		id, _ := strconv.Atoi(m[1])
		title := strings.TrimSpace(m[2])

		infoIdx := nextNonEmpty(lines, i+1)
		ratingIdx := nextNonEmpty(lines, infoIdx+1)
		votesIdx := nextNonEmpty(lines, ratingIdx+1)
		if infoIdx < 0 || ratingIdx < 0 || votesIdx < 0 {
			errs = append(errs, fmt.Sprintf("movie %d: missing info/rating/votes line", id))
			i++
			continue
		}
		next := votesIdx + 1

		info := strings.TrimSpace(lines[infoIdx])
		loc := infoRe.FindStringSubmatchIndex(info)
		if loc == nil {
			errs = append(errs, fmt.Sprintf("movie %d: info format mismatch -> %q", id, info))
			i = next
			continue
		}
		year, _ := strconv.Atoi(info[loc[2]:loc[3]])
		runtime := strings.TrimSpace(info[loc[4]:loc[5]])
		certificate, metascore := splitCertificate(strings.TrimSpace(info[loc[1]:]))

		ratingLine := strings.TrimSpace(lines[ratingIdx])
		rating, err := strconv.ParseFloat(ratingLine, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("movie %d: rating format mismatch -> %q", id, ratingLine))
			i = next
			continue
		}

		votesLine := strings.TrimSpace(lines[votesIdx])
		vm := votesRe.FindStringSubmatch(votesLine)
		if vm == nil {
			errs = append(errs, fmt.Sprintf("movie %d: votes format mismatch -> %q", id, votesLine))
			i = next
			continue
		}

		movies = append(movies, domain.Movie{
			ID:          id,
			Title:       title,
			Year:        year,
			Runtime:     runtime,
			Certificate: certificate,
			Metascore:   metascore,
			IMDbRating:  rating,
			Votes:       domain.Votes(strings.TrimSpace(vm[1])),
		})
		i = next
	}

	if len(errs) > 0 {
		if len(errs) > maxReportedErrors {
			errs = errs[:maxReportedErrors]
		}
		return nil, fmt.Errorf("parsing errors:\n- %s", strings.Join(errs, "\n- "))
	}
	return movies, nil
}

// splitCertificate separates the certificate from a trailing metascore.
// "R82Metascore" -> ("R", 82); "PG-13100Metascore" -> ("PG-13", 100); "R" -> ("R", nil).
// Certificates that end in digits ("TV-14") keep all but the last two digits.
func splitCertificate(remainder string) (*string, *int) {
	before, _, hasMeta := strings.Cut(remainder, "Metascore")
	if !hasMeta {
		return optionalString(remainder), nil
	}

	loc := digitRe.FindStringIndex(before)
	if loc == nil {
		return optionalString(before), nil
	}
	digits := before[loc[0]:loc[1]]
	prefix := before[:loc[0]]

	var (
		score      int
		certDigits string
	)
	switch {
	case len(digits) >= 3 && strings.HasSuffix(digits, "100"):
		score = 100
		certDigits = digits[:len(digits)-3]
	case len(digits) >= 2:
		score, _ = strconv.Atoi(digits[len(digits)-2:])
		certDigits = digits[:len(digits)-2]
	default:
		score, _ = strconv.Atoi(digits)
	}
	return optionalString(prefix + certDigits), &score
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func nextNonEmpty(lines []string, start int) int {
	if start < 0 {
		return -1
	}
	for i := start; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "" {
			return i
		}
	}
	return -1
}

// Validate checks that ids run 1..N without gaps or duplicates.
func Validate(movies []domain.Movie) error {
	if len(movies) == 0 {
		return errors.New("no entries parsed from listing")
	}

	seen := make(map[int]bool, len(movies))
	maxID := 0
	for _, m := range movies {
		seen[m.ID] = true
		if m.ID > maxID {
			maxID = m.ID
		}
	}

	var missing []int
	for id := 1; id <= maxID && len(missing) < maxReportedErrors; id++ {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing movie ids: %v", missing)
	}
	if len(movies) != maxID {
		return fmt.Errorf("entry count mismatch: parsed=%d, max_id=%d", len(movies), maxID)
	}
	return nil
}

// WriteJSON writes movies as an indented JSON feed.
func WriteJSON(w io.Writer, movies []domain.Movie) error {
	data, err := json.MarshalIndent(movies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// BuildFile parses the listing at src, validates it and writes the feed to dst.
// Returns the number of movies written.
func BuildFile(src, dst string) (int, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open listing: %w", err)
	}
	defer in.Close()

	movies, err := ParseListing(in)
	if err != nil {
		return 0, err
	}
	if err := Validate(movies); err != nil {
		return 0, err
	}

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if err := WriteJSON(out, movies); err != nil {
		out.Close()
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", dst, err)
	}
	return len(movies), nil
}
