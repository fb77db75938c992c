package client

import "context"

// Bootstrap restores the session once per process start.
//
// With no durable snapshot it completes immediately without any network
// call. With a snapshot it optimistically installs the cached profile as
// unverified, refreshes the access token, and fetches the authoritative
// profile, overwriting both the session and the snapshot. Any failure along
// the way clears both; a user is never left looking authenticated without a
// verified server round-trip.
//
// The store is marked hydrated in every outcome, so guards can act.
func (c *Client) Bootstrap(ctx context.Context) {
	defer c.store.MarkHydrated()

	snapshot, ok := c.store.LoadSnapshot()
	if !ok {
		return
	}

	c.store.SetUnverifiedUser(snapshot.User)

	if err := c.refresh(ctx); err != nil {
		c.store.Clear()
		return
	}

	profile, err := c.Me(ctx)
	if err != nil {
		c.store.Clear()
		return
	}

	c.store.SetSession(profile, c.store.AccessToken())
}
