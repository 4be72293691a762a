// Package adminapi exposes typed calls for the MARGEM admin API resources:
// stores, mobile users, support users, partners, reference data, dashboard
// and reports.
//
// Every error returned is an *apierror.Error.
package adminapi

import (
	"context"
	"log/slog"
	"net/url"

	"margem/internal/apierror"
)

// Endpoint paths relative to the API base.
const (
	PathStores            = "/store"
	PathMobile            = "/mobile"
	PathMobileStores      = "/mobile/store"
	PathMobileByIDs       = "/mobile/by-ids"
	PathSupport           = "/support"
	PathPartners          = "/partners"
	PathStates            = "/states"
	PathCities            = "/cities"
	PathSegments          = "/segments"
	PathSizes             = "/sizes"
	PathDashboardStats    = "/dashboard/stats"
	PathDashboardActivity = "/dashboard/activity"
	PathReportsSummary    = "/reports/summary"
	PathReportsStores     = "/reports/stores"
)

// API is the JSON transport. *httpclient.Client implements it.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, query url.Values, body, out any) error
	Delete(ctx context.Context, path string, query url.Values, out any) error
}

// Client groups the resource calls.
type Client struct {
	api    API
	logger *slog.Logger
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(api API, opts ...Option) *Client {
	c := &Client{api: api, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func query(kv ...string) url.Values {
	q := make(url.Values, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		q.Set(kv[i], kv[i+1])
	}
	return q
}

// notFound reports whether err means the resource does not exist.
func notFound(err error) bool {
	return apierror.HasCode(err, apierror.CodeNotFound)
}

func invalid(msg string) *apierror.Error {
	return apierror.New(apierror.CodeValidation, msg)
}
