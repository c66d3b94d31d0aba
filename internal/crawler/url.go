package crawler

import (
	"fmt"
	"net/url"
	"strconv"
)

// PageURL returns base with its page query parameter set to page.
// A base without a query gets "?page=<n>" appended; other query parameters are kept.
func PageURL(base string, page int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("base url %q is not absolute", base)
	}
	if page < 1 {
		return "", fmt.Errorf("page must be >= 1, got %d", page)
	}
	if u.RawQuery == "" {
		u.RawQuery = "page=" + strconv.Itoa(page)
		return u.String(), nil
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
