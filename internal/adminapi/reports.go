package adminapi

import (
	"context"
	"net/url"
	"strconv"
)

const (
	exportPageSize = 100
	maxExportPages = 100
)

func (c *Client) ReportSummary(ctx context.Context) (*ReportSummary, error) {
	var summary ReportSummary
	if err := c.api.Get(ctx, PathReportsSummary, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) StoresReport(ctx context.Context, filters ReportFilters) (*StoresReport, error) {
	var report StoresReport
	if err := c.api.Get(ctx, PathReportsStores, filters.values(), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// AllStores walks every report page, 100 stores at a time, stopping after
// 100 pages. Page and Limit in filters are ignored.
func (c *Client) AllStores(ctx context.Context, filters ReportFilters) ([]StoreReportItem, error) {
	var all []StoreReportItem
	filters.Limit = exportPageSize
	for page := 1; page <= maxExportPages; page++ {
		filters.Page = page
		report, err := c.StoresReport(ctx, filters)
		if err != nil {
			return nil, err
		}
		all = append(all, report.Data...)
		if page >= report.TotalPages {
			return all, nil
		}
	}
	c.logger.WarnContext(ctx, "stores export truncated", "pages", maxExportPages, "stores", len(all))
	return all, nil
}

func (f ReportFilters) values() url.Values {
	q := make(url.Values)
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Partner != "" && f.Partner != "all" {
		q.Set("partner", f.Partner)
	}
	if f.Active != "" {
		q.Set("active", f.Active)
	}
	return q
}
