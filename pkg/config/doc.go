/*
Package config loads and validates the Slipway control-plane configuration.

Configuration is a single YAML file layered over in-code defaults; the serve
command additionally lets a handful of flags override the file. Durations are
written as Go duration strings ("30s", "5m") via the Duration wrapper.

# Recognized Options

	listen: ":8080"                    # control-plane API address
	domain: "workspaces.example.com"   # public domain behind the proxy
	data_dir: /var/lib/slipway         # bbolt databases live here
	auth_token: ""                     # optional bearer token for /containers
	cors_origins: []                   # optional browser origins
	region_default: us-east-1
	credentials_default:               # fallback bucket credentials
	  aws_access_key_id: ""
	  aws_secret_access_key: ""
	vnc_password: ""
	pool:
	  target: 2                        # desired pre-warmed workspaces
	  spawn_delay: 2s                  # pause between pool spawns
	  readiness_interval: 2s           # editor-URL poll period
	  readiness_cap: 120s              # give up and mark failed
	resources:
	  mem_threshold_pct: 90            # refuse launches at/above this
	  cpu_threshold_pct: 90            # logged only, never blocks
	  cpu_cores_limit: 2               # per-workspace caps
	  memory_bytes_limit: 2147483648
	loops:
	  queue: 30s
	  health: 5s
	  cleanup: 60s
	health:
	  probe_timeout: 3s
	  max_consecutive_failures: 3
	runtime:
	  socket: /run/containerd/containerd.sock
	  namespace: slipway
	  image: ghcr.io/slipway-sh/workspace:latest
	alerts:
	  webhook_url: ""                  # empty disables alerting
	  cooldown: 5m
	stats:
	  enabled: true
	log:
	  level: info
	  json: true

# Usage

	cfg, err := config.Load("/etc/slipway/slipway.yaml")
	if err != nil {
		return err
	}

Load applies defaults first, then the file, then validates. An empty path
returns pure defaults, so `slipway serve` runs without any file at all.

# See Also

  - cmd/slipway for the flag overrides
  - pkg/manager for how the tree is wired into components
*/
package config
