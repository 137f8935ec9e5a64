// Package api exposes the read-only admin interface of the daemon: recent
// deployment records, registered chains, and a liveness probe.
package api
