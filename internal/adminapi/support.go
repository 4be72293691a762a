package adminapi

import "context"

// GetSupportUser returns nil when no support user has the email. Accounts
// without an active flag are reported active.
func (c *Client) GetSupportUser(ctx context.Context, email string) (*SupportUser, error) {
	if email == "" {
		return nil, nil
	}
	user := SupportUser{Active: true}
	if err := c.api.Get(ctx, PathSupport, query("email", email), &user); err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if user.ID == "" {
		return nil, nil
	}
	return &user, nil
}

func (c *Client) CreateSupportUser(ctx context.Context, user SupportUser) (*SupportUser, error) {
	user.ID = ""
	created := SupportUser{Active: true}
	if err := c.api.Post(ctx, PathSupport, user, &created); err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "support user created", "email", user.Email)
	return &created, nil
}

// UpdateSupportUser updates the account matched by user.Email.
func (c *Client) UpdateSupportUser(ctx context.Context, user SupportUser) (*SupportUser, error) {
	updated := SupportUser{Active: true}
	if err := c.api.Put(ctx, PathSupport, nil, user, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteSupportUser(ctx context.Context, email string) error {
	return c.api.Delete(ctx, PathSupport, query("email", email), nil)
}
