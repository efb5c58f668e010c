// Package client talks to the insurance backend API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/faciam-dev/formportal/pkg/formschema"
)

const (
	formsPath       = "/api/insurance/forms"
	submitPath      = "/api/insurance/forms/submit"
	submissionsPath = "/api/insurance/forms/submissions"
)

// Client provides REST access to the insurance backend.
type Client interface {
	// FetchForms returns the form structures for an insurance type.
	FetchForms(ctx context.Context, insuranceType string) ([]formschema.Structure, error)
	// Submit posts a completed application.
	Submit(ctx context.Context, formID string, data formschema.Values) (Submission, error)
	// ListSubmissions returns one page of submitted applications.
	ListSubmissions(ctx context.Context, q ListQuery) (Page, error)
	// FetchOptions loads a dynamic option list from endpoint using method,
	// passing the dependency value under param. GET, HEAD and DELETE send it
	// as a query parameter, other methods as a JSON body.
	FetchOptions(ctx context.Context, method, endpoint, param, value string) ([]string, error)
}

// Submission is the record the backend returns for an accepted application.
type Submission map[string]any

// ID returns the submission id if the backend sent one.
func (s Submission) ID() string {
	if v, ok := s["id"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// ListQuery carries the listing parameters sent on every reload.
type ListQuery struct {
	Page   int
	Limit  int
	Sort   string
	Order  string
	Search string
}

// Params renders q as query parameters. Search is omitted when empty.
func (q ListQuery) Params() map[string]string {
	p := map[string]string{
		"page":  strconv.Itoa(q.Page),
		"limit": strconv.Itoa(q.Limit),
		"sort":  q.Sort,
		"order": q.Order,
	}
	if q.Search != "" {
		p["search"] = q.Search
	}
	return p
}

// Page is one page of the submissions listing. Total is nil when the backend
// does not report an overall count.
type Page struct {
	Data  []formschema.Application `json:"data"`
	Total *int                     `json:"total,omitempty"`
}

type optionsResponse struct {
	States []string `json:"states"`
}

type submitRequest struct {
	FormID string            `json:"formId"`
	Data   formschema.Values `json:"data"`
}

type httpClient struct {
	http   *resty.Client
	logger *zap.SugaredLogger
}

// Option configures the client.
type Option func(*httpClient)

// WithLogger sets the logger used to report failed calls.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *httpClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout bounds every request. Requests have no timeout by default.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.SetTimeout(d)
	}
}

// WithRetry retries failed requests count times.
func WithRetry(count int) Option {
	return func(c *httpClient) {
		c.http.SetRetryCount(count)
	}
}

// New returns a Client for the backend at base.
func New(base string, opts ...Option) Client {
	c := &httpClient{
		http:   resty.New().SetBaseURL(base).SetHeader("Content-Type", "application/json"),
		logger: zap.NewNop().Sugar(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) FetchForms(ctx context.Context, insuranceType string) ([]formschema.Structure, error) {
	resp, err := c.http.R().SetContext(ctx).SetQueryParam("type", insuranceType).Get(formsPath)
	if err != nil {
		c.logger.Errorw("fetch form structure", "type", insuranceType, "err", err)
		return nil, err
	}
	if resp.IsError() {
		c.logger.Errorw("fetch form structure", "type", insuranceType, "status", resp.Status())
		return nil, restyErr(resp)
	}
	out, err := formschema.DecodeJSON(resp.Body())
	if err != nil {
		c.logger.Errorw("decode form structure", "type", insuranceType, "err", err)
		return nil, err
	}
	return out, nil
}

func (c *httpClient) Submit(ctx context.Context, formID string, data formschema.Values) (Submission, error) {
	var out Submission
	resp, err := c.http.R().SetContext(ctx).
		SetBody(submitRequest{FormID: formID, Data: data}).
		SetResult(&out).
		Post(submitPath)
	if err != nil {
		c.logger.Errorw("submit form", "form", formID, "err", err)
		return nil, err
	}
	if resp.IsError() {
		c.logger.Errorw("submit form", "form", formID, "status", resp.Status())
		return nil, restyErr(resp)
	}
	return out, nil
}

func (c *httpClient) ListSubmissions(ctx context.Context, q ListQuery) (Page, error) {
	var out Page
	resp, err := c.http.R().SetContext(ctx).SetQueryParams(q.Params()).SetResult(&out).Get(submissionsPath)
	if err != nil {
		c.logger.Errorw("fetch submissions", "err", err)
		return Page{}, err
	}
	if resp.IsError() {
		c.logger.Errorw("fetch submissions", "status", resp.Status())
		return Page{}, restyErr(resp)
	}
	return out, nil
}

func (c *httpClient) FetchOptions(ctx context.Context, method, endpoint, param, value string) ([]string, error) {
	if endpoint == "" {
		return nil, errors.New("options endpoint is empty")
	}
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)
	var out optionsResponse
	req := c.http.R().SetContext(ctx).SetResult(&out)
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		req.SetQueryParam(param, value)
	default:
		req.SetBody(map[string]string{param: value})
	}
	resp, err := req.Execute(method, endpoint)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, restyErr(resp)
	}
	if out.States == nil {
		return []string{}, nil
	}
	return out.States, nil
}
