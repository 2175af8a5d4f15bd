package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ListingService проверяет существование ссылки на вещь в Listing-сервисе.
// Содержимое объявления здесь не валидируется, только факт существования.
type ListingService interface {
	Exists(ctx context.Context, itemRef string) (bool, error)
}

type listingServiceClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewListingServiceClient(baseURL string, timeout time.Duration) ListingService {
	return &listingServiceClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *listingServiceClient) Exists(ctx context.Context, itemRef string) (bool, error) {
	endpoint := c.baseURL + "/api/v1/listings/" + url.PathEscape(itemRef)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("listing service returned status %d", resp.StatusCode)
	}
}
