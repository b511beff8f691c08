// Package cache provides the Redis-backed badge response cache.
//
// A cached entry is a fully rendered badge payload keyed by provider route
// and parameters. Serving from cache skips the credential pool entirely,
// which is what keeps popular badges from draining upstream quota. Entries
// expire on their own TTL; quota state is never cached, it is rebuilt from
// upstream response headers.
package cache
