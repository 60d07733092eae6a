package proxy

import (
	"fmt"
	"strconv"
)

// Role identifies one of the three endpoints a workspace exposes.
type Role string

const (
	RoleEditor  Role = "editor"
	RoleDesktop Role = "desktop"
	RoleWeb     Role = "web"
)

// Backend ports are deterministic per role.
const (
	EditorPort  = 8443
	DesktopPort = 6080
	WebPort     = 8080
)

// RouterPriority sits above any catch-all router the proxy carries.
const RouterPriority = 10

// TLSResolver is the certificate resolver name configured on the proxy.
const TLSResolver = "letsencrypt"

// Identity label keys, consumed back by the orchestrator adapter when
// listing live services.
const (
	LabelManaged = "slipway.managed"
	LabelID      = "slipway.id"
	LabelDomain  = "slipway.domain"
	LabelBucket  = "slipway.bucket"
)

// Roles lists all three endpoint roles in a stable order.
func Roles() []Role {
	return []Role{RoleEditor, RoleDesktop, RoleWeb}
}

// Port returns the backend container port for a role.
func (r Role) Port() int {
	switch r {
	case RoleEditor:
		return EditorPort
	case RoleDesktop:
		return DesktopPort
	case RoleWeb:
		return WebPort
	}
	return 0
}

// Labels builds the complete label set for a workspace service: three
// path-prefix routers with strip-prefix middleware and priority above
// catch-alls, plus identity labels for later extraction. The TLS resolver is
// attached only for public DNS names, never for raw IPs or localhost.
func Labels(id, domain, bucket string) map[string]string {
	labels := map[string]string{
		"traefik.enable": "true",
		LabelManaged:     "true",
		LabelID:          id,
		LabelDomain:      domain,
		LabelBucket:      bucket,
	}

	secure := Scheme(domain) == "https"
	for _, role := range Roles() {
		name := fmt.Sprintf("%s-%s", role, id)
		prefix := fmt.Sprintf("/%s/%s", role, id)

		labels[fmt.Sprintf("traefik.http.routers.%s.rule", name)] =
			fmt.Sprintf("PathPrefix(`%s`) || PathPrefix(`%s/`)", prefix, prefix)
		labels[fmt.Sprintf("traefik.http.routers.%s.priority", name)] = strconv.Itoa(RouterPriority)
		labels[fmt.Sprintf("traefik.http.routers.%s.middlewares", name)] = name + "-strip"
		labels[fmt.Sprintf("traefik.http.routers.%s.service", name)] = name
		labels[fmt.Sprintf("traefik.http.middlewares.%s-strip.stripprefix.prefixes", name)] = prefix
		labels[fmt.Sprintf("traefik.http.services.%s.loadbalancer.server.port", name)] = strconv.Itoa(role.Port())

		if secure {
			labels[fmt.Sprintf("traefik.http.routers.%s.tls", name)] = "true"
			labels[fmt.Sprintf("traefik.http.routers.%s.tls.certresolver", name)] = TLSResolver
		}
	}

	return labels
}

// IsManaged reports whether a label set belongs to a Slipway workspace.
func IsManaged(labels map[string]string) bool {
	return labels[LabelManaged] == "true"
}
