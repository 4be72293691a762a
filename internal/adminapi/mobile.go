package adminapi

import (
	"context"

	"margem/internal/apierror"
)

const msgUserNotFound = "Usuario nao encontrado."

func (c *Client) GetMobileUserByEmail(ctx context.Context, email string) (*MobileUser, error) {
	return c.getMobileUser(ctx, "email", email)
}

func (c *Client) GetMobileUserByPhone(ctx context.Context, phone string) (*MobileUser, error) {
	return c.getMobileUser(ctx, "phone", phone)
}

// getMobileUser returns nil when the API answers with an empty object.
func (c *Client) getMobileUser(ctx context.Context, key, value string) (*MobileUser, error) {
	if value == "" {
		return nil, nil
	}
	var user MobileUser
	if err := c.api.Get(ctx, PathMobile, query(key, value), &user); err != nil {
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

// GetUserStores lists the stores linked to the user with the given id.
func (c *Client) GetUserStores(ctx context.Context, userID string) ([]UserStore, error) {
	var stores []UserStore
	if err := c.api.Get(ctx, PathMobileStores, query("id", userID), &stores); err != nil {
		return nil, err
	}
	return stores, nil
}

func (c *Client) GetMobileUserWithStores(ctx context.Context, email string) (*MobileUserWithStores, error) {
	user, err := c.GetMobileUserByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, err
	}
	return c.withStores(ctx, user)
}

func (c *Client) GetMobileUserWithStoresByPhone(ctx context.Context, phone string) (*MobileUserWithStores, error) {
	user, err := c.GetMobileUserByPhone(ctx, phone)
	if err != nil || user == nil {
		return nil, err
	}
	return c.withStores(ctx, user)
}

func (c *Client) withStores(ctx context.Context, user *MobileUser) (*MobileUserWithStores, error) {
	stores, err := c.GetUserStores(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &MobileUserWithStores{User: user, Stores: stores}, nil
}

func (c *Client) CreateMobileUser(ctx context.Context, user MobileUser) (*MobileUser, error) {
	user.ID = ""
	var created MobileUser
	if err := c.api.Post(ctx, PathMobile, user, &created); err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "mobile user created", "email", user.Email)
	return &created, nil
}

// UpdateMobileUser updates the user identified by user.ID, looking the id up
// by email when it is missing.
func (c *Client) UpdateMobileUser(ctx context.Context, user MobileUser) (*MobileUser, error) {
	id := user.ID
	if id == "" {
		existing, err := c.GetMobileUserByEmail(ctx, user.Email)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, apierror.New(apierror.CodeNotFound, msgUserNotFound)
		}
		id = existing.ID
	}
	user.ID = ""
	var updated MobileUser
	if err := c.api.Put(ctx, PathMobile, query("id", id), user, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteMobileUser(ctx context.Context, email string) error {
	return c.api.Delete(ctx, PathMobile, query("email", email), nil)
}

// AddStoreToUser links the store with cnpj to the user with email.
func (c *Client) AddStoreToUser(ctx context.Context, email, cnpj string) error {
	return c.api.Put(ctx, PathMobileStores, query("email", email, "cnpj", cnpj), nil, nil)
}

func (c *Client) RemoveStoreFromUser(ctx context.Context, email, cnpj string) error {
	return c.api.Delete(ctx, PathMobileStores, query("email", email, "cnpj", cnpj), nil)
}
