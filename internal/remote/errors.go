package remote

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mmcdole/pickflix/internal/domain"
)

var (
	duplicateKeyRe  = regexp.MustCompile(`(?i)duplicate key`)
	missingPicksRe  = regexp.MustCompile(`(?i)relation .*picks.* does not exist`)
	missingTableMsg = regexp.MustCompile(`(?i)could not find the table .*picks`)
)

// apiError is the PostgREST error body
type apiError struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details"`
	Hint    *string `json:"hint"`
}

// parseError classifies a non-2xx response. The structured code is checked
// first; message matching covers backends that omit it.
func parseError(status int, body []byte) *domain.StoreError {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil || (apiErr.Code == "" && apiErr.Message == "") {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(status)
		}
		apiErr = apiError{Message: msg}
	}
	return classify(status, apiErr)
}

func classify(status int, apiErr apiError) *domain.StoreError {
	switch {
	case apiErr.Code == "23505" || duplicateKeyRe.MatchString(apiErr.Message):
		return domain.NewStoreError(domain.KindConflict, apiErr.Code, apiErr.Message, nil)
	case apiErr.Code == "42P01" || apiErr.Code == "PGRST205" ||
		missingPicksRe.MatchString(apiErr.Message) || missingTableMsg.MatchString(apiErr.Message):
		return domain.NewStoreError(domain.KindSchemaMissing, apiErr.Code, apiErr.Message, nil)
	}

	msg := apiErr.Message
	if msg == "" {
		msg = fmt.Sprintf("unexpected status code: %d", status)
	}
	return domain.NewStoreError(domain.KindOther, apiErr.Code, msg, nil)
}
