package pagination

import (
	"fmt"
	"net/http"
	"strconv"
)

// Params is a validated page request. Page is 1-based.
type Params struct {
	Page  int
	Limit int
}

// ParseQueryParams reads the page and limit query parameters, applying the
// configured defaults when a parameter is absent. A present but malformed
// or out-of-range parameter is an error rather than a silent correction, so
// a caller paging through results cannot misread where they are.
func ParseQueryParams(r *http.Request, config Config) (Params, error) {
	params := Params{
		Page:  config.DefaultPage,
		Limit: config.DefaultLimit,
	}

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			return params, fmt.Errorf("invalid query parameter: page must be a positive integer")
		}
		params.Page = page
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > config.MaxLimit {
			return params, fmt.Errorf("invalid query parameter: limit must be between 1 and %d", config.MaxLimit)
		}
		params.Limit = limit
	}

	return params, nil
}
