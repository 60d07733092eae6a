/*
Package proxy derives the reverse-proxy contract for workspace services.

Slipway does not proxy traffic itself: an external Traefik instance watches
the runtime and routes by URL path prefix. This package holds the two pure
functions at that boundary, the label set a workspace service is created
with, and the public URL scheme those labels produce.

# URL Scheme

Every workspace exposes three endpoints behind the shared proxy:

	{proto}://{domain}/editor/{id}   → container port 8443 (code editor)
	{proto}://{domain}/desktop/{id}  → container port 6080 (remote desktop)
	{proto}://{domain}/web/{id}      → container port 8080 (in-workspace web)

proto is "http" when the domain is localhost, a *.localhost name, or an
IPv4/IPv6 literal; otherwise "https" with the proxy's "letsencrypt"
certificate resolver.

# Label Scheme

For each role the service carries a router, a strip-prefix middleware, and a
backend definition:

	traefik.http.routers.editor-{id}.rule = PathPrefix(`/editor/{id}`) || PathPrefix(`/editor/{id}/`)
	traefik.http.routers.editor-{id}.priority = 10
	traefik.http.routers.editor-{id}.middlewares = editor-{id}-strip
	traefik.http.middlewares.editor-{id}-strip.stripprefix.prefixes = /editor/{id}
	traefik.http.services.editor-{id}.loadbalancer.server.port = 8443

Priority 10 keeps workspace routers above the deployment's catch-alls. The
strip prefix removes exactly /editor/{id}, so the in-container server sees
root-relative paths. Identity labels (slipway.id, slipway.domain,
slipway.bucket, slipway.managed) let the orchestrator adapter recognize and
reconstruct workspaces when listing live services.

# Usage

	labels := proxy.Labels(id, cfg.Domain, "")
	urls := proxy.URLs(cfg.Domain, id)
	editorURL := proxy.URL(cfg.Domain, id, proxy.RoleEditor)

# See Also

  - pkg/runtime for where labels are applied at create time
  - pkg/maintainer for the readiness poll against the editor URL
*/
package proxy
