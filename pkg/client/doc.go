// Package client is the Go client for the slipway HTTP API. The CLI
// commands are built on it; anything else that wants a workspace
// programmatically can use it the same way.
//
// # Architecture
//
// One method per API operation, sharing a single do() helper that
// attaches the bearer token, bounds the call at ten seconds, and
// translates error responses back into the pkg/errdefs taxonomy:
//
//	client.Start ──▶ POST /api/v1/containers/start          201
//	client.List ───▶ GET  /api/v1/containers                200
//	client.Get ────▶ GET  /api/v1/containers/{id}           200
//	client.Stop ───▶ DELETE /api/v1/containers/{id}         200
//	client.ReportInactivity
//	        └─────▶ POST /api/v1/containers/{id}/inactivity-shutdown
//
// The round trip preserves error kinds: a 400 invalid_bucket on the
// wire comes back as an error satisfying errdefs.IsInvalidBucket, a 404
// as errdefs.IsNotFound, a 503 as errdefs.IsResourceExhausted. Callers
// branch on kinds, not status codes.
//
// # Usage
//
//	c := client.NewClient("http://localhost:8080").WithToken(token)
//
//	ws, err := c.Start(api.StartRequest{Bucket: "team-data"})
//	if errdefs.IsResourceExhausted(err) {
//	    // host is full, try later
//	}
//
// Start returns as soon as the control plane has a workspace for the
// bucket; the editor URL becomes reachable a moment later, once the
// proxy picks up the container's routes.
//
// # Integration Points
//
//   - pkg/api: request and response types shared with the server
//   - pkg/errdefs: error kinds reconstructed from error responses
//   - cmd/slipway: start, list, get, stop commands
//
// # See Also
//
//   - pkg/api: the server side of this wire contract
package client
