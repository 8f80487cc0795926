package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v62/github"

	"ghrest.dev/ghrest/internal/transport"
)

// User is the set of operations available on any account
type User struct {
	client *Client
	// login is empty for the authenticated user
	login string
}

// Login returns the login the user was created for, or "" for the authenticated user
func (u *User) Login() string {
	return u.login
}

func (u *User) path() string {
	if u.login == "" {
		return "/user"
	}
	return "/users/" + escape(u.login)
}

// Profile returns the user's profile
func (u *User) Profile(ctx context.Context) (*github.User, error) {
	var user github.User
	if _, err := u.client.transport.Do(ctx, http.MethodGet, u.path(), nil, &user); err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &user, nil
}

// Repos lists the user's repositories
func (u *User) Repos(ctx context.Context) ([]*github.Repository, error) {
	var repos []*github.Repository
	if _, err := u.client.transport.Do(ctx, http.MethodGet, u.path()+"/repos", nil, &repos); err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	return repos, nil
}

// AuthenticatedUser adds the operations that need the caller's own credentials
type AuthenticatedUser struct {
	User
}

// Follows reports whether the authenticated user follows login
func (u *AuthenticatedUser) Follows(ctx context.Context, login string) (bool, error) {
	return u.client.transport.Bool(ctx, http.MethodGet, "/user/following/"+escape(login))
}

// Follow follows login
func (u *AuthenticatedUser) Follow(ctx context.Context, login string) error {
	_, err := u.client.transport.Request(ctx, http.MethodPut, "/user/following/"+escape(login), nil, transport.Options{})
	return err
}

// Unfollow stops following login
func (u *AuthenticatedUser) Unfollow(ctx context.Context, login string) error {
	_, err := u.client.transport.Request(ctx, http.MethodDelete, "/user/following/"+escape(login), nil, transport.Options{})
	return err
}

// Emails lists the authenticated user's email addresses
func (u *AuthenticatedUser) Emails(ctx context.Context) ([]*github.UserEmail, error) {
	var emails []*github.UserEmail
	if _, err := u.client.transport.Do(ctx, http.MethodGet, "/user/emails", nil, &emails); err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	return emails, nil
}
