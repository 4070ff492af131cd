// Package exac looks up population allele frequencies through the ExAC
// browser REST API.
package exac

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/Jeffail/gabs"
	"go.uber.org/zap"

	"github.com/inodb/vcf-annotate/internal/annotate"
	"github.com/inodb/vcf-annotate/internal/vcf"
)

// DefaultBaseURL is the public ExAC REST endpoint.
const DefaultBaseURL = "http://exac.hms.harvard.edu/rest"

// StatusError is returned for responses other than 200 and 404.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("exac: GET %s: status %d", e.URL, e.Code)
}

// Client queries ExAC for single variants. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

var _ annotate.FrequencySource = (*Client)(nil)

// NewClient creates a client for the API at baseURL. An empty baseURL uses
// DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: time.Minute},
		logger:  zap.NewNop(),
	}
}

// SetHTTPClient replaces the HTTP client used for requests.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.http = hc
}

// SetLogger sets the logger for request tracing.
func (c *Client) SetLogger(l *zap.Logger) {
	c.logger = l
}

// Lookup fetches /variant/{chrom}-{pos}-{ref}-{alt}. A 404, or a body
// without variant.allele_freq, means the allele was not observed.
func (c *Client) Lookup(ctx context.Context, v vcf.Variant) (annotate.FrequencyAnnotation, error) {
	key := fmt.Sprintf("%s-%d-%s-%s", vcf.NormalizeChrom(v.Chrom), v.Pos, v.Ref, v.Alt)
	url := c.baseURL + "/variant/" + key

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return annotate.FrequencyAnnotation{}, fmt.Errorf("exac: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return annotate.FrequencyAnnotation{}, fmt.Errorf("exac: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("exac lookup", zap.String("variant", key), zap.Int("status", resp.StatusCode))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return annotate.FrequencyAnnotation{}, nil
	default:
		io.Copy(io.Discard, resp.Body)
		return annotate.FrequencyAnnotation{}, &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return annotate.FrequencyAnnotation{}, fmt.Errorf("exac: read %s: %w", key, err)
	}
	return parseVariant(body)
}

// parseVariant extracts the allele frequency and the consequence terms from
// a /variant response.
func parseVariant(body []byte) (annotate.FrequencyAnnotation, error) {
	doc, err := gabs.ParseJSON(body)
	if err != nil {
		return annotate.FrequencyAnnotation{}, fmt.Errorf("exac: parse response: %w", err)
	}

	var out annotate.FrequencyAnnotation
	switch af := doc.Path("variant.allele_freq").Data().(type) {
	case float64:
		out.AlleleFrequency = &af
	case nil:
	default:
		return annotate.FrequencyAnnotation{}, fmt.Errorf("exac: allele_freq is %T", af)
	}

	if csq, ok := doc.Path("consequence").Data().(map[string]interface{}); ok {
		for term := range csq {
			out.Consequences = append(out.Consequences, term)
		}
		slices.Sort(out.Consequences)
	}
	return out, nil
}
