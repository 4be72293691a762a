package adminapi

import (
	"context"

	"golang.org/x/sync/errgroup"
)

func (c *Client) States(ctx context.Context) ([]State, error) {
	var states []State
	if err := c.api.Get(ctx, PathStates, nil, &states); err != nil {
		return nil, err
	}
	return states, nil
}

func (c *Client) Segments(ctx context.Context) ([]Segment, error) {
	var segments []Segment
	if err := c.api.Get(ctx, PathSegments, nil, &segments); err != nil {
		return nil, err
	}
	return segments, nil
}

func (c *Client) Sizes(ctx context.Context) ([]Size, error) {
	var sizes []Size
	if err := c.api.Get(ctx, PathSizes, nil, &sizes); err != nil {
		return nil, err
	}
	return sizes, nil
}

// Cities lists the cities of a state, or all cities when stateCode is empty.
func (c *Client) Cities(ctx context.Context, stateCode string) ([]City, error) {
	q := query()
	if stateCode != "" {
		q = query("estado", stateCode)
	}
	var cities []City
	if err := c.api.Get(ctx, PathCities, q, &cities); err != nil {
		return nil, err
	}
	return cities, nil
}

// LoadReferenceData fetches partners, states, segments and sizes
// concurrently. The first failure cancels the rest and is returned.
func (c *Client) LoadReferenceData(ctx context.Context) (*ReferenceData, error) {
	var data ReferenceData
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		partners, err := c.ListPartners(gctx)
		data.Partners = partners
		return err
	})
	g.Go(func() error {
		states, err := c.States(gctx)
		data.States = states
		return err
	})
	g.Go(func() error {
		segments, err := c.Segments(gctx)
		data.Segments = segments
		return err
	})
	g.Go(func() error {
		sizes, err := c.Sizes(gctx)
		data.Sizes = sizes
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &data, nil
}
