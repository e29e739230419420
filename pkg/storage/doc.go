/*
Package storage persists the network roster.

The roster is a single JSON array of networks. It is always read and written
as a whole; callers that need read-modify-write go through Store.Update so
concurrent operations on different networks cannot lose each other's edits.

Two backends are provided:

	FileStore  <data-dir>/networks.json, written atomically (temp file + rename)
	BoltStore  <data-dir>/poanet.db, the same document under roster/networks

A missing roster is initialized to an empty array on first Load. A roster that
does not parse as a JSON array of networks fails with types.ErrCorruptRoster.

# Usage

	store := storage.NewFileStore(driver.RosterPath())
	err := store.Update(func(networks []*types.Network) ([]*types.Network, error) {
		return append(networks, network), nil
	})
*/
package storage
