package adminapi

import (
	"context"
	"net/url"
	"strings"
)

// ListPartners returns every partner with a non-blank name.
func (c *Client) ListPartners(ctx context.Context) ([]Partner, error) {
	var partners []Partner
	if err := c.api.Get(ctx, PathPartners, nil, &partners); err != nil {
		return nil, err
	}
	named := partners[:0]
	for _, p := range partners {
		if strings.TrimSpace(p.Name) != "" {
			named = append(named, p)
		}
	}
	return named, nil
}

// GetPartner returns nil when no partner has code.
func (c *Client) GetPartner(ctx context.Context, code string) (*Partner, error) {
	var partner Partner
	if err := c.api.Get(ctx, partnerPath(code), nil, &partner); err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &partner, nil
}

func (c *Client) CreatePartner(ctx context.Context, req PartnerRequest) (*Partner, error) {
	var partner Partner
	if err := c.api.Post(ctx, PathPartners, req, &partner); err != nil {
		return nil, err
	}
	return &partner, nil
}

func (c *Client) UpdatePartner(ctx context.Context, id string, req PartnerRequest) (*Partner, error) {
	var partner Partner
	if err := c.api.Put(ctx, partnerPath(id), nil, req, &partner); err != nil {
		return nil, err
	}
	return &partner, nil
}

func (c *Client) DeletePartner(ctx context.Context, id string) error {
	return c.api.Delete(ctx, partnerPath(id), nil, nil)
}

func partnerPath(key string) string {
	return PathPartners + "/" + url.PathEscape(key)
}
