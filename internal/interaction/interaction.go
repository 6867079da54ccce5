// internal/interaction/interaction.go

// Package interaction holds the HTTP request and response shapes that plans
// are executed against, and decodes them from contract documents.
package interaction

import (
	"fmt"
	"mime"
	"net/url"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/pact-foundation/pactengine/internal/generators"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/matchers"
	"github.com/pact-foundation/pactengine/internal/matchingrules"
)

/*
 * Request and response documents use the contract file layout:
 *
 *   {
 *     "method": "GET",
 *     "path": "/items",
 *     "query": "a=1&a=2"           (or {"a": ["1", "2"]})
 *     "headers": {"Accept": "application/json"},
 *     "body": {...},               (any JSON; strings are taken verbatim)
 *     "matchingRules": {...},
 *     "generators": {...}
 *   }
 *
 * A nil Body means the body is absent, which is different from an empty
 * body.
 */

// HTTPRequest is one request, expected or actual.
type HTTPRequest struct {
	Method        string
	Path          string
	Query         map[string][]string
	Headers       map[string][]string
	Body          []byte
	MatchingRules *matchingrules.MatchingRules
	Generators    *generators.Generators
}

// HTTPResponse is one response, expected or actual.
type HTTPResponse struct {
	Status        int
	Headers       map[string][]string
	Body          []byte
	MatchingRules *matchingrules.MatchingRules
	Generators    *generators.Generators
}

// Interaction is one request and response pair of a contract.
type Interaction struct {
	Description   string
	ProviderState string
	Request       *HTTPRequest
	Response      *HTTPResponse
}

// HeaderValues returns the values of a header, matching the name without
// regard to case.
func HeaderValues(headers map[string][]string, name string) ([]string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

// LowerCaseHeaders returns the headers keyed by lower-cased name. Values of
// names differing only in case are merged in sorted name order.
func LowerCaseHeaders(headers map[string][]string) map[string][]string {
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make(map[string][]string, len(headers))
	for _, k := range names {
		lower := strings.ToLower(k)
		out[lower] = append(out[lower], headers[k]...)
	}
	return out
}

// ContentType returns the content type declared by the headers, or the
// type detected from the body. It is "" when there is neither.
func ContentType(headers map[string][]string, body []byte) string {
	if values, ok := HeaderValues(headers, "Content-Type"); ok && len(values) > 0 {
		return strings.Join(values, ", ")
	}
	if len(body) > 0 {
		return matchers.DetectContentType(body)
	}
	return ""
}

// BaseContentType strips the parameters from a content type.
func BaseContentType(contentType string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
}

// IsJSONContentType reports whether the content type is JSON, including
// the +json structured syntax suffix.
func IsJSONContentType(contentType string) bool {
	base := BaseContentType(contentType)
	return base == "application/json" || strings.HasSuffix(base, "+json")
}

// ContentType of the request.
func (r *HTTPRequest) ContentType() string { return ContentType(r.Headers, r.Body) }

// ContentType of the response.
func (r *HTTPResponse) ContentType() string { return ContentType(r.Headers, r.Body) }

// ParseRequest decodes a request document.
func ParseRequest(data []byte) (*HTTPRequest, error) {
	doc, err := jsondoc.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("request must be a JSON object, got %s", jsondoc.TypeName(doc))
	}
	return RequestFromJSON(obj)
}

// ParseResponse decodes a response document.
func ParseResponse(data []byte) (*HTTPResponse, error) {
	doc, err := jsondoc.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("response must be a JSON object, got %s", jsondoc.TypeName(doc))
	}
	return ResponseFromJSON(obj)
}

// ParseInteraction decodes an interaction document holding "request" and
// "response" objects.
func ParseInteraction(data []byte) (*Interaction, error) {
	doc, err := jsondoc.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse interaction: %w", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("interaction must be a JSON object, got %s", jsondoc.TypeName(doc))
	}
	i := &Interaction{
		Description:   jsondoc.String(obj["description"]),
		ProviderState: stringField(obj, "providerState"),
	}
	if req, ok := obj["request"].(map[string]any); ok {
		if i.Request, err = RequestFromJSON(req); err != nil {
			return nil, err
		}
	}
	if resp, ok := obj["response"].(map[string]any); ok {
		if i.Response, err = ResponseFromJSON(resp); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// RequestFromJSON builds a request from a decoded document.
func RequestFromJSON(obj map[string]any) (*HTTPRequest, error) {
	query, err := queryFromJSON(obj["query"])
	if err != nil {
		return nil, err
	}
	headers, err := headersFromJSON(obj["headers"])
	if err != nil {
		return nil, err
	}
	method := stringField(obj, "method")
	if method == "" {
		method = "GET"
	}
	path := stringField(obj, "path")
	if path == "" {
		path = "/"
	}
	return &HTTPRequest{
		Method:        strings.ToUpper(method),
		Path:          path,
		Query:         query,
		Headers:       headers,
		Body:          bodyFromJSON(obj),
		MatchingRules: rulesFromJSON(obj["matchingRules"]),
		Generators:    generatorsFromJSON(obj["generators"]),
	}, nil
}

// ResponseFromJSON builds a response from a decoded document.
func ResponseFromJSON(obj map[string]any) (*HTTPResponse, error) {
	headers, err := headersFromJSON(obj["headers"])
	if err != nil {
		return nil, err
	}
	status := 200
	if v, ok := obj["status"]; ok {
		n, ok := jsondoc.Normalise(v).(json.Number)
		if !ok {
			return nil, fmt.Errorf("response status must be a number, got %s", jsondoc.Serialise(v))
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("invalid response status %s: %w", n, err)
		}
		status = int(i)
	}
	return &HTTPResponse{
		Status:        status,
		Headers:       headers,
		Body:          bodyFromJSON(obj),
		MatchingRules: rulesFromJSON(obj["matchingRules"]),
		Generators:    generatorsFromJSON(obj["generators"]),
	}, nil
}

func stringField(obj map[string]any, key string) string {
	if s, ok := obj[key].(string); ok {
		return s
	}
	return ""
}

func queryFromJSON(v any) (map[string][]string, error) {
	switch t := v.(type) {
	case nil:
		return map[string][]string{}, nil
	case string:
		values, err := url.ParseQuery(t)
		if err != nil {
			return nil, fmt.Errorf("invalid query string '%s': %w", t, err)
		}
		return values, nil
	case map[string]any:
		return stringListMap(t, "query parameter")
	}
	return nil, fmt.Errorf("query must be a string or an object, got %s", jsondoc.TypeName(v))
}

func headersFromJSON(v any) (map[string][]string, error) {
	switch t := v.(type) {
	case nil:
		return map[string][]string{}, nil
	case map[string]any:
		return stringListMap(t, "header")
	}
	return nil, fmt.Errorf("headers must be an object, got %s", jsondoc.TypeName(v))
}

func stringListMap(obj map[string]any, what string) (map[string][]string, error) {
	out := make(map[string][]string, len(obj))
	for k, v := range obj {
		switch t := v.(type) {
		case []any:
			values := make([]string, len(t))
			for i, item := range t {
				values[i] = jsondoc.String(item)
			}
			out[k] = values
		case nil:
			out[k] = []string{""}
		case map[string]any:
			return nil, fmt.Errorf("%s '%s' must be a string or a list of strings", what, k)
		default:
			out[k] = []string{jsondoc.String(t)}
		}
	}
	return out, nil
}

func bodyFromJSON(obj map[string]any) []byte {
	body, ok := obj["body"]
	if !ok {
		return nil
	}
	if s, ok := body.(string); ok {
		return []byte(s)
	}
	return []byte(jsondoc.Serialise(body))
}

func rulesFromJSON(v any) *matchingrules.MatchingRules {
	if obj, ok := v.(map[string]any); ok && len(obj) > 0 {
		return matchingrules.FromJSON(obj)
	}
	return matchingrules.NewMatchingRules()
}

func generatorsFromJSON(v any) *generators.Generators {
	if obj, ok := v.(map[string]any); ok && len(obj) > 0 {
		return generators.FromJSON(obj)
	}
	return generators.New()
}
