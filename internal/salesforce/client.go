// Package salesforce is a small REST client for the Salesforce data API:
// SOQL query with continuation, delete by id and upsert by external id.
package salesforce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultAPIVersion is the data API version used when none is configured.
const DefaultAPIVersion = "v60.0"

// Credential is a bearer token plus the instance it is valid for.
type Credential struct {
	AccessToken string
	InstanceURL string
}

// Page is one page of a SOQL query result.
type Page struct {
	TotalSize      int              `json:"totalSize"`
	Done           bool             `json:"done"`
	NextRecordsURL string           `json:"nextRecordsUrl"`
	Records        []map[string]any `json:"records"`
}

// UpsertResult is the raw response of an upsert by external id.
type UpsertResult struct {
	StatusCode int
	ID         string // set on 201 when the body carries an id
	Body       []byte
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, strings.TrimSpace(e.Body))
}

// Options configures a Client.
type Options struct {
	// InstanceURL is used when the credential does not name an instance.
	InstanceURL string
	APIVersion  string
	// RequestTimeout bounds every single HTTP request. Zero means no limit
	// beyond the caller's context.
	RequestTimeout time.Duration
	// HTTPClient overrides the underlying transport client.
	HTTPClient *http.Client
}

// Client talks to one Salesforce org. It holds no credential; each call is
// given the credential to use.
type Client struct {
	http        *resty.Client
	instanceURL string
	apiVersion  string
}

// NewClient builds a Client. The resty client is owned by this instance; a
// supplied HTTPClient is copied so the request timeout does not leak into it.
func NewClient(opts Options) *Client {
	var rc *resty.Client
	if opts.HTTPClient != nil {
		hc := *opts.HTTPClient
		rc = resty.NewWithClient(&hc)
	} else {
		rc = resty.New()
	}
	if opts.RequestTimeout > 0 {
		rc.SetTimeout(opts.RequestTimeout)
	}
	rc.SetHeader("Accept", "application/json")

	version := opts.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}

	return &Client{
		http:        rc,
		instanceURL: strings.TrimRight(opts.InstanceURL, "/"),
		apiVersion:  version,
	}
}

// Query runs a SOQL query and returns the first page.
func (c *Client) Query(ctx context.Context, cred *Credential, soql string) (*Page, error) {
	endpoint := c.dataURL(cred, "query") + "?q=" + url.QueryEscape(soql)
	return c.getPage(ctx, cred, endpoint)
}

// QueryMore follows a nextRecordsUrl continuation returned by a previous page.
func (c *Client) QueryMore(ctx context.Context, cred *Credential, next string) (*Page, error) {
	endpoint := next
	if !strings.HasPrefix(next, "http://") && !strings.HasPrefix(next, "https://") {
		endpoint = c.base(cred) + "/" + strings.TrimLeft(next, "/")
	}
	return c.getPage(ctx, cred, endpoint)
}

func (c *Client) getPage(ctx context.Context, cred *Credential, endpoint string) (*Page, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(cred.AccessToken).
		Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", endpoint, err)
	}
	if !resp.IsSuccess() {
		return nil, apiError(http.MethodGet, endpoint, resp)
	}

	var page Page
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, fmt.Errorf("decoding query page from %s: %w", endpoint, err)
	}
	return &page, nil
}

// Delete removes the record with the given Salesforce id.
func (c *Client) Delete(ctx context.Context, cred *Credential, object, id string) error {
	endpoint := c.dataURL(cred, "sobjects", object, id)
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(cred.AccessToken).
		Delete(endpoint)
	if err != nil {
		return fmt.Errorf("DELETE %s: %w", endpoint, err)
	}
	if !resp.IsSuccess() {
		return apiError(http.MethodDelete, endpoint, resp)
	}
	return nil
}

// Upsert creates or updates the record whose externalField equals externalID.
// A non-2xx response is returned as *APIError together with the partial result.
func (c *Client) Upsert(ctx context.Context, cred *Credential, object, externalField, externalID string, payload map[string]any) (*UpsertResult, error) {
	endpoint := c.dataURL(cred, "sobjects", object, externalField, externalID)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload for %s: %w", object, externalID, err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(cred.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Patch(endpoint)
	if err != nil {
		return nil, fmt.Errorf("PATCH %s: %w", endpoint, err)
	}

	result := &UpsertResult{StatusCode: resp.StatusCode(), Body: resp.Body()}
	if !resp.IsSuccess() {
		return result, apiError(http.MethodPatch, endpoint, resp)
	}

	if result.StatusCode == http.StatusCreated {
		var parsed struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(result.Body, &parsed) == nil {
			result.ID = parsed.ID
		}
	}
	return result, nil
}

func (c *Client) base(cred *Credential) string {
	if cred != nil && cred.InstanceURL != "" {
		return strings.TrimRight(cred.InstanceURL, "/")
	}
	return c.instanceURL
}

func (c *Client) dataURL(cred *Credential, segments ...string) string {
	var b strings.Builder
	b.WriteString(c.base(cred))
	b.WriteString("/services/data/")
	b.WriteString(c.apiVersion)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func apiError(method, endpoint string, resp *resty.Response) *APIError {
	return &APIError{
		Method:     method,
		URL:        endpoint,
		StatusCode: resp.StatusCode(),
		Body:       string(resp.Body()),
	}
}
