// Package lookup calls the reseller lookup endpoint on behalf of the widget.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/reseller_cta/internal/jsontree"
)

const (
	DefaultTimeout      = 5 * time.Second
	DefaultCacheTTL     = time.Minute
	defaultMaxBodyBytes = 64 * 1024
	cacheCleanupFactor  = 2

	headerAccept    = "Accept"
	mediaTypeJSON   = "application/json"
	logFieldURL     = "url"
	logFieldStatus  = "status"
	logEventFailure = "reseller_lookup_failed"

	errorMessageBuildRequest = "lookup: build request"
	errorMessageRequest      = "lookup: request"
	errorMessageReadBody     = "lookup: read body"
	errorMessageBodyTooLarge = "lookup: response body too large"
	errorMessageDecode       = "lookup: decode body"
)

var (
	// ErrRequest wraps transport failures.
	ErrRequest = errors.New(errorMessageRequest)
	// ErrBodyTooLarge indicates the response exceeded the size limit.
	ErrBodyTooLarge = errors.New(errorMessageBodyTooLarge)
	// ErrDecode wraps bodies that are not JSON.
	ErrDecode = errors.New(errorMessageDecode)
)

// Client fetches lookup responses and caches decoded bodies for a short time. The HTTP
// status is not interpreted; the widget judges the body.
type Client struct {
	httpClient   *http.Client
	logger       *zap.Logger
	responses    *cache.Cache
	maxBodyBytes int64
}

// NewClient builds a client. A non-positive cacheTTL disables caching.
func NewClient(httpClient *http.Client, logger *zap.Logger, cacheTTL time.Duration) *Client {
	client := &Client{
		httpClient:   httpClient,
		logger:       logger,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if client.logger == nil {
		client.logger = zap.NewNop()
	}
	if cacheTTL > 0 {
		client.responses = cache.New(cacheTTL, cacheCleanupFactor*cacheTTL)
	}
	return client
}

func (client *Client) Fetch(ctx context.Context, requestURL string) (jsontree.Value, error) {
	normalizedURL := strings.TrimSpace(requestURL)
	if client.responses != nil {
		if cached, found := client.responses.Get(normalizedURL); found {
			return cached.(jsontree.Value), nil
		}
	}

	response, fetchErr := client.fetch(ctx, normalizedURL)
	if fetchErr != nil {
		client.logger.Debug(logEventFailure, zap.String(logFieldURL, normalizedURL), zap.Error(fetchErr))
		return jsontree.Value{}, fetchErr
	}

	if client.responses != nil {
		client.responses.Set(normalizedURL, response, cache.DefaultExpiration)
	}
	return response, nil
}

func (client *Client) fetch(ctx context.Context, requestURL string) (jsontree.Value, error) {
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if requestErr != nil {
		return jsontree.Value{}, fmt.Errorf("%s: %w", errorMessageBuildRequest, requestErr)
	}
	request.Header.Set(headerAccept, mediaTypeJSON)

	response, doErr := client.httpClient.Do(request)
	if doErr != nil {
		return jsontree.Value{}, fmt.Errorf("%w: %w", ErrRequest, doErr)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, client.maxBodyBytes+1))
	if readErr != nil {
		return jsontree.Value{}, fmt.Errorf("%s: %w", errorMessageReadBody, readErr)
	}
	if int64(len(body)) > client.maxBodyBytes {
		return jsontree.Value{}, ErrBodyTooLarge
	}

	decoded, decodeErr := jsontree.Parse(body)
	if decodeErr != nil {
		return jsontree.Value{}, fmt.Errorf("%w: %s %d: %w", ErrDecode, logFieldStatus, response.StatusCode, decodeErr)
	}
	return decoded, nil
}
