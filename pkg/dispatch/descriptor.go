package dispatch

import (
	"net/url"

	"github.com/badgesmith/badgesmith/pkg/credential"
	"github.com/xeipuuv/gojsonschema"
)

// Surface identifies which upstream API surface a descriptor targets.
type Surface string

const (
	// SurfaceResource is the path-addressed REST surface.
	SurfaceResource Surface = "resource"

	// SurfaceQuery is the single-endpoint GraphQL surface.
	SurfaceQuery Surface = "query"
)

// Descriptor is an immutable description of one outbound call. Adapters build
// a descriptor per badge request and hand it to the dispatcher; nothing in a
// descriptor is mutated during dispatch.
type Descriptor struct {
	// Name labels the call in logs and metrics, e.g. "repo.stars".
	Name string

	Surface Surface

	// Method, Path and Query describe a resource-surface call. Path is the
	// already-resolved endpoint path, e.g. "/repos/foo/bar/tags".
	Method string
	Path   string
	Query  url.Values

	// Document and Variables describe a query-surface call.
	Document  string
	Variables map[string]any

	// Schema validates a successful payload. A payload that fails validation
	// is classified KindInvalidResponse, never surfaced as a fault. Optional;
	// nil skips shape checking.
	Schema *gojsonschema.Schema

	// ErrorMessages overrides the human-readable message per classified
	// failure kind, so adapters can say "repo not found" instead of the
	// generic text. Optional.
	ErrorMessages map[Kind]string
}

// scope maps the descriptor's surface to the credential scope it needs.
func (d Descriptor) scope() credential.Scope {
	if d.Surface == SurfaceQuery {
		return credential.ScopeQuery
	}
	return credential.ScopeResource
}

// message resolves the human message for a failure kind, preferring the
// descriptor's lookup table.
func (d Descriptor) message(kind Kind, fallback string) string {
	if m, ok := d.ErrorMessages[kind]; ok {
		return m
	}
	return fallback
}

// MustCompileSchema compiles a JSON schema document, panicking on error.
// Descriptors declare their expected payload shape once at package init, so
// a malformed schema is a programming error, not a runtime condition.
func MustCompileSchema(doc string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic("dispatch: invalid schema: " + err.Error())
	}
	return schema
}
