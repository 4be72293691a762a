package adminapi

import (
	"context"
)

// GetStore looks a store up by CNPJ. It returns nil when cnpj is empty or
// no store matches.
func (c *Client) GetStore(ctx context.Context, cnpj string) (*Store, error) {
	if cnpj == "" {
		return nil, nil
	}
	var store Store
	if err := c.api.Get(ctx, PathStores, query("cnpj", cnpj), &store); err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if store.CNPJ == "" && store.ID == "" {
		return nil, nil
	}
	return &store, nil
}

func (c *Client) CreateStore(ctx context.Context, store Store) (*Store, error) {
	if store.CNPJ == "" {
		return nil, invalid("CNPJ obrigatorio.")
	}
	store.ID = ""
	var created Store
	if err := c.api.Post(ctx, PathStores, store, &created); err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "store created", "cnpj", store.CNPJ)
	return &created, nil
}

// UpdateStore replaces the store identified by store.ID.
func (c *Client) UpdateStore(ctx context.Context, store Store) (*Store, error) {
	if store.ID == "" {
		return nil, invalid("Loja sem identificador.")
	}
	id := store.ID
	store.ID = ""
	var updated Store
	if err := c.api.Put(ctx, PathStores, query("id", id), store, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteStore(ctx context.Context, cnpj string) error {
	if cnpj == "" {
		return invalid("CNPJ obrigatorio.")
	}
	if err := c.api.Delete(ctx, PathStores, query("cnpj", cnpj), nil); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "store deleted", "cnpj", cnpj)
	return nil
}

// GetUsersByIDs resolves store user ids. An empty list makes no request.
func (c *Client) GetUsersByIDs(ctx context.Context, ids []string) ([]StoreUser, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []StoreUser
	body := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}
	if err := c.api.Post(ctx, PathMobileByIDs, body, &users); err != nil {
		return nil, err
	}
	return users, nil
}
