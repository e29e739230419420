// Package client is the HTTP client of the poanet REST API.
//
// Client mirrors the manager's operations one to one. Errors returned by the
// server come back as *APIError, which unwraps to the errdefs kind of the
// response status: a missing network is still errdefs.IsNotFound on the
// client side. Both 409 answers (already exists, inconsistent state) unwrap to
// errdefs.ErrConflict since the status code alone cannot tell them apart.
package client
