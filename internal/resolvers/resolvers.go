// internal/resolvers/resolvers.go

// Package resolvers supplies plan values from concrete HTTP interactions.
package resolvers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pact-foundation/pactengine/internal/docpath"
	"github.com/pact-foundation/pactengine/internal/engine"
	"github.com/pact-foundation/pactengine/internal/interaction"
	"github.com/pact-foundation/pactengine/internal/types"
)

/*
 * The first field of a path selects the part of the interaction:
 *
 *   $.method                 request method
 *   $.path                   request path, without any scheme and host
 *   $.status                 response status
 *   $.query / $.query.*      every query parameter (MMAP)
 *   $.query.name             STRING for one value, SLIST for several, NULL
 *                            when absent
 *   $.headers...             as query, names compared in lower case, plus
 *                            $.headers.name[n] for one value of a header
 *   $.content-type           declared or detected content type
 *   $.body                   raw body (BYTES), NULL when there is none
 *
 * Every other path is an error. Paths are never answered with NULL just
 * because they are unknown.
 */

var urlPrefix = regexp.MustCompile(`^https?://([^/]*)`)

// HTTPRequestResolver resolves paths against a request.
type HTTPRequestResolver struct {
	Request *interaction.HTTPRequest
}

// NewHTTPRequestResolver returns a resolver over req.
func NewHTTPRequestResolver(req *interaction.HTTPRequest) *HTTPRequestResolver {
	return &HTTPRequestResolver{Request: req}
}

// Resolve implements engine.ValueResolver.
func (r *HTTPRequestResolver) Resolve(path docpath.DocPath, _ *engine.PlanMatchingContext) (engine.NodeValue, error) {
	field, ok := path.FirstField()
	if !ok {
		return nil, invalidPath(path, "a HTTP request")
	}
	switch field {
	case "method":
		return engine.StringValue(r.Request.Method), nil
	case "path":
		return engine.StringValue(urlPrefix.ReplaceAllString(r.Request.Path, "")), nil
	case "query":
		return resolveMulti(path, r.Request.Query, false, "a HTTP request query parameters")
	case "headers":
		return resolveMulti(path, interaction.LowerCaseHeaders(r.Request.Headers), true, "a HTTP request headers")
	case "content-type":
		return engine.StringValue(r.Request.ContentType()), nil
	case "body":
		return resolveBody(path, r.Request.Body), nil
	}
	return nil, invalidPath(path, "a HTTP request")
}

// HTTPResponseResolver resolves paths against a response.
type HTTPResponseResolver struct {
	Response *interaction.HTTPResponse
}

// NewHTTPResponseResolver returns a resolver over resp.
func NewHTTPResponseResolver(resp *interaction.HTTPResponse) *HTTPResponseResolver {
	return &HTTPResponseResolver{Response: resp}
}

// Resolve implements engine.ValueResolver.
func (r *HTTPResponseResolver) Resolve(path docpath.DocPath, _ *engine.PlanMatchingContext) (engine.NodeValue, error) {
	field, ok := path.FirstField()
	if !ok {
		return nil, invalidPath(path, "a HTTP response")
	}
	switch field {
	case "status":
		return engine.UintValue(r.Response.Status), nil
	case "headers":
		return resolveMulti(path, interaction.LowerCaseHeaders(r.Response.Headers), true, "a HTTP response headers")
	case "content-type":
		return engine.StringValue(r.Response.ContentType()), nil
	case "body":
		return resolveBody(path, r.Response.Body), nil
	}
	return nil, invalidPath(path, "a HTTP response")
}

func invalidPath(path docpath.DocPath, what string) error {
	return types.NewEvalError(types.ErrUnsupportedPathShape, fmt.Sprintf("%s is not valid for %s", path, what))
}

// resolveMulti addresses a multi-valued map: the whole map, one key, or for
// headers one value of a key.
func resolveMulti(path docpath.DocPath, values map[string][]string, headers bool, what string) (engine.NodeValue, error) {
	switch {
	case path.Len() == 2 || (path.Len() == 3 && path.IsWildcard()):
		return engine.MultiMap(copyMulti(values)), nil
	case path.Len() == 3:
		name, ok := path.LastField()
		if !ok {
			return engine.Null, nil
		}
		if headers {
			name = strings.ToLower(name)
		}
		return fromValues(values[name]), nil
	case headers && path.Len() == 4:
		last, _ := path.Last()
		if last.Kind != docpath.Index {
			break
		}
		name, ok := path.LastField()
		if !ok {
			return engine.Null, nil
		}
		items := values[strings.ToLower(name)]
		if last.Index < 0 || last.Index >= len(items) {
			return engine.Null, nil
		}
		return engine.StringValue(items[last.Index]), nil
	}
	return nil, invalidPath(path, what)
}

func fromValues(items []string) engine.NodeValue {
	switch {
	case items == nil:
		return engine.Null
	case len(items) == 1:
		return engine.StringValue(items[0])
	default:
		return engine.StringList(append([]string(nil), items...))
	}
}

func copyMulti(values map[string][]string) map[string][]string {
	out := make(map[string][]string, len(values))
	for k, v := range values {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func resolveBody(path docpath.DocPath, body []byte) engine.NodeValue {
	if path.Len() == 2 && body != nil {
		return engine.BytesValue(append([]byte(nil), body...))
	}
	return engine.Null
}
