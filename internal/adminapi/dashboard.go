package adminapi

import (
	"context"

	"golang.org/x/sync/errgroup"
)

func (c *Client) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	if err := c.api.Get(ctx, PathDashboardStats, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) RecentActivity(ctx context.Context) ([]Activity, error) {
	var activity []Activity
	if err := c.api.Get(ctx, PathDashboardActivity, nil, &activity); err != nil {
		return nil, err
	}
	return activity, nil
}

// Overview loads stats and recent activity together.
func (c *Client) Overview(ctx context.Context) (*DashboardOverview, error) {
	var (
		stats    *DashboardStats
		activity []Activity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = c.DashboardStats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		activity, err = c.RecentActivity(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &DashboardOverview{Stats: *stats, Activity: activity}, nil
}
