package utils

import (
	"context"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/badoux/checkmail"
)

// EmailEnricher extracts a contact email from a business website. Directory
// search results never include email addresses, so the scraper fetches the
// site itself and scans for one.
type EmailEnricher struct {
	Client *http.Client
	Logger *log.Logger
}

func NewEmailEnricher(logger *log.Logger) *EmailEnricher {
	return &EmailEnricher{
		Client: &http.Client{Timeout: 8 * time.Second},
		Logger: logger,
	}
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Pages worth scanning on a business site, in order of likelihood.
var contactPaths = []string{"", "/contact", "/contacto", "/about"}

// FindEmail fetches the website's homepage and common contact pages and
// returns the first syntactically valid address found. Returns "" when
// nothing usable turns up; enrichment failures are never fatal.
func (ee *EmailEnricher) FindEmail(ctx context.Context, website string) string {
	if website == "" {
		return ""
	}
	base := strings.TrimSuffix(website, "/")

	for _, path := range contactPaths {
		select {
		case <-ctx.Done():
			return ""
		default:
		}

		email := ee.scanPage(ctx, base+path)
		if email != "" {
			return email
		}
	}
	return ""
}

func (ee *EmailEnricher) scanPage(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; leadforge/1.0)")

	resp, err := ee.Client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	// 512KB is plenty for scanning markup for an address.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return ""
	}

	for _, match := range emailPattern.FindAllString(string(body), 10) {
		email := strings.ToLower(match)
		// Image filenames and framework artifacts match the pattern too.
		if strings.HasSuffix(email, ".png") || strings.HasSuffix(email, ".jpg") ||
			strings.HasSuffix(email, ".svg") || strings.HasSuffix(email, ".webp") {
			continue
		}
		if err := checkmail.ValidateFormat(email); err != nil {
			continue
		}
		return email
	}
	return ""
}
