package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"leadforge/config"
)

// UpstreamError carries a failure from an external API through to the
// HTTP boundary with the upstream message attached.
type UpstreamError struct {
	Service string
	Status  string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Service, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Status)
}

// PlaceResult is one business listing from a directory text search.
type PlaceResult struct {
	PlaceID     string
	Name        string
	Address     string
	Category    string
	Rating      float64
	ReviewCount int
}

// PlaceDetails holds the contact fields only available from a details lookup.
type PlaceDetails struct {
	Phone   string
	Website string
}

// PlacesClient talks to a Google-Places-style business directory API.
type PlacesClient struct {
	APIKey   string
	BaseURL  string
	MaxPages int
	Client   *http.Client
	Logger   *log.Logger

	// Delay before following a next_page_token; the live API needs a short
	// pause before the token becomes valid. Overridable in tests.
	PageDelay time.Duration
}

func NewPlacesClient(cfg config.PlacesConfig, logger *log.Logger) *PlacesClient {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 3
	}
	return &PlacesClient{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		MaxPages:  maxPages,
		Client:    &http.Client{Timeout: 15 * time.Second},
		Logger:    logger,
		PageDelay: 2 * time.Second,
	}
}

type textSearchResponse struct {
	Results []struct {
		PlaceID          string   `json:"place_id"`
		Name             string   `json:"name"`
		FormattedAddress string   `json:"formatted_address"`
		Rating           float64  `json:"rating"`
		UserRatingsTotal int      `json:"user_ratings_total"`
		Types            []string `json:"types"`
	} `json:"results"`
	NextPageToken string `json:"next_page_token"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message"`
}

type detailsResponse struct {
	Result struct {
		FormattedPhoneNumber string `json:"formatted_phone_number"`
		Website              string `json:"website"`
	} `json:"result"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// TextSearch runs a paginated directory search. On a mid-pagination failure
// the results fetched so far are returned together with the error, so the
// caller can persist the partial batch.
func (pc *PlacesClient) TextSearch(ctx context.Context, query, location string, radius int) ([]PlaceResult, error) {
	var results []PlaceResult
	pageToken := ""

	for page := 0; page < pc.MaxPages; page++ {
		if pageToken != "" {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(pc.PageDelay):
			}
		}

		resp, err := pc.searchPage(ctx, query, location, radius, pageToken)
		if err != nil {
			return results, err
		}

		for _, r := range resp.Results {
			category := ""
			if len(r.Types) > 0 {
				category = r.Types[0]
			}
			results = append(results, PlaceResult{
				PlaceID:     r.PlaceID,
				Name:        r.Name,
				Address:     r.FormattedAddress,
				Category:    category,
				Rating:      r.Rating,
				ReviewCount: r.UserRatingsTotal,
			})
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return results, nil
}

func (pc *PlacesClient) searchPage(ctx context.Context, query, location string, radius int, pageToken string) (*textSearchResponse, error) {
	params := url.Values{}
	params.Set("key", pc.APIKey)
	if pageToken != "" {
		params.Set("pagetoken", pageToken)
	} else {
		q := query
		if location != "" {
			q = query + " in " + location
		}
		params.Set("query", q)
		if radius > 0 {
			params.Set("radius", strconv.Itoa(radius))
		}
	}

	endpoint := pc.BaseURL + "/textsearch/json?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	httpResp, err := pc.Client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Service: "places", Status: "network_error", Message: err.Error()}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Service: "places", Status: httpResp.Status}
	}

	var resp textSearchResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &UpstreamError{Service: "places", Status: "bad_response", Message: err.Error()}
	}

	switch resp.Status {
	case "OK", "ZERO_RESULTS":
		return &resp, nil
	default:
		return nil, &UpstreamError{Service: "places", Status: resp.Status, Message: resp.ErrorMessage}
	}
}

// Details fetches phone and website for a single listing. A failed details
// lookup is not fatal to a scrape; callers log and move on.
func (pc *PlacesClient) Details(ctx context.Context, placeID string) (*PlaceDetails, error) {
	params := url.Values{}
	params.Set("key", pc.APIKey)
	params.Set("place_id", placeID)
	params.Set("fields", "formatted_phone_number,website")

	endpoint := pc.BaseURL + "/details/json?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	httpResp, err := pc.Client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Service: "places", Status: "network_error", Message: err.Error()}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Service: "places", Status: httpResp.Status}
	}

	var resp detailsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &UpstreamError{Service: "places", Status: "bad_response", Message: err.Error()}
	}

	if resp.Status != "OK" {
		return nil, &UpstreamError{Service: "places", Status: resp.Status, Message: resp.ErrorMessage}
	}

	return &PlaceDetails{
		Phone:   resp.Result.FormattedPhoneNumber,
		Website: resp.Result.Website,
	}, nil
}
