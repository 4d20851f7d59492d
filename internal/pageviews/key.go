package pageviews

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"MoviePageViews/internal/domain"
)

// LookupKey percent-encodes a title (UTF-8, form encoding) so it can be appended
// to the stats base URL. Titles are NFC-normalized first so composed and
// decomposed spellings address the same page.
func LookupKey(title string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", fmt.Errorf("empty title: %w", domain.ErrEncoding)
	}
	if !utf8.ValidString(title) {
		return "", fmt.Errorf("title %q is not valid UTF-8: %w", title, domain.ErrEncoding)
	}
	return url.QueryEscape(norm.NFC.String(title)), nil
}
