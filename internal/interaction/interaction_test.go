// internal/interaction/interaction_test.go
package interaction

import (
	"reflect"
	"testing"
)

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest([]byte(`{
		"method": "post",
		"path": "/items",
		"query": "a=1&a=2&b=x",
		"headers": {"Accept": ["application/json", "text/plain"], "X-Count": 2},
		"body": {"id": 1},
		"matchingRules": {"$.body.id": {"match": "type"}}
	}`))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}

	if req.Method != "POST" {
		t.Errorf("Method = %s, want POST", req.Method)
	}
	if req.Path != "/items" {
		t.Errorf("Path = %s, want /items", req.Path)
	}
	wantQuery := map[string][]string{"a": {"1", "2"}, "b": {"x"}}
	if !reflect.DeepEqual(req.Query, wantQuery) {
		t.Errorf("Query = %v, want %v", req.Query, wantQuery)
	}
	wantHeaders := map[string][]string{"Accept": {"application/json", "text/plain"}, "X-Count": {"2"}}
	if !reflect.DeepEqual(req.Headers, wantHeaders) {
		t.Errorf("Headers = %v, want %v", req.Headers, wantHeaders)
	}
	if string(req.Body) != `{"id":1}` {
		t.Errorf("Body = %s, want {\"id\":1}", req.Body)
	}
	if !req.MatchingRules.HasCategory("body") {
		t.Errorf("MatchingRules.HasCategory(body) = false, want true")
	}
}

func TestParseRequestDefaults(t *testing.T) {
	req, err := ParseRequest([]byte(`{}`))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if req.Method != "GET" || req.Path != "/" {
		t.Errorf("ParseRequest() = %s %s, want GET /", req.Method, req.Path)
	}
	if req.Body != nil {
		t.Errorf("Body = %q, want nil", req.Body)
	}
	if len(req.Query) != 0 || len(req.Headers) != 0 {
		t.Errorf("Query, Headers = %v, %v, want empty", req.Query, req.Headers)
	}
	if req.MatchingRules == nil || req.Generators == nil {
		t.Errorf("MatchingRules, Generators = %v, %v, want non-nil", req.MatchingRules, req.Generators)
	}
}

func TestParseRequestQueryObject(t *testing.T) {
	req, err := ParseRequest([]byte(`{"query": {"a": ["1", "2"], "b": "x", "c": null}}`))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	want := map[string][]string{"a": {"1", "2"}, "b": {"x"}, "c": {""}}
	if !reflect.DeepEqual(req.Query, want) {
		t.Errorf("Query = %v, want %v", req.Query, want)
	}
}

func TestParseRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"not an object", `[1]`},
		{"query number", `{"query": 1}`},
		{"bad query string", `{"query": "a=%zz"}`},
		{"header object", `{"headers": {"Accept": {"a": 1}}}`},
		{"headers list", `{"headers": ["a"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRequest([]byte(tt.doc)); err == nil {
				t.Errorf("ParseRequest(%s) error = nil, want error", tt.doc)
			}
		})
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name       string
		doc        string
		wantStatus int
		wantBody   string
		wantErr    bool
	}{
		{"defaults", `{}`, 200, "", false},
		{"status", `{"status": 404, "body": "not found"}`, 404, "not found", false},
		{"empty string body", `{"status": 204, "body": ""}`, 204, "", false},
		{"status string", `{"status": "404"}`, 0, "", true},
		{"status decimal", `{"status": 200.5}`, 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseResponse([]byte(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", resp.Status, tt.wantStatus)
			}
			if string(resp.Body) != tt.wantBody {
				t.Errorf("Body = %q, want %q", resp.Body, tt.wantBody)
			}
		})
	}
}

func TestParseInteraction(t *testing.T) {
	i, err := ParseInteraction([]byte(`{
		"description": "a request for items",
		"providerState": "items exist",
		"request": {"method": "GET", "path": "/items"},
		"response": {"status": 200}
	}`))
	if err != nil {
		t.Fatalf("ParseInteraction() error = %v", err)
	}
	if i.Description != "a request for items" || i.ProviderState != "items exist" {
		t.Errorf("ParseInteraction() = %q, %q", i.Description, i.ProviderState)
	}
	if i.Request == nil || i.Request.Path != "/items" {
		t.Errorf("Request = %+v, want path /items", i.Request)
	}
	if i.Response == nil || i.Response.Status != 200 {
		t.Errorf("Response = %+v, want status 200", i.Response)
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string][]string
		body    []byte
		want    string
	}{
		{"declared", map[string][]string{"content-type": {"application/json;charset=UTF-8"}}, nil, "application/json;charset=UTF-8"},
		{"detected json", nil, []byte(`{"a": 1}`), "application/json"},
		{"detected xml", nil, []byte(`<?xml version="1.0"?><a/>`), "application/xml"},
		{"none", nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ContentType(tt.headers, tt.body); got != tt.want {
				t.Errorf("ContentType() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsJSONContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"application/json", true},
		{"application/json; charset=UTF-8", true},
		{"application/hal+json", true},
		{"APPLICATION/JSON", true},
		{"text/plain", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			if got := IsJSONContentType(tt.contentType); got != tt.want {
				t.Errorf("IsJSONContentType(%s) = %v, want %v", tt.contentType, got, tt.want)
			}
		})
	}
}

func TestLowerCaseHeaders(t *testing.T) {
	got := LowerCaseHeaders(map[string][]string{
		"Accept": {"a"},
		"accept": {"b"},
		"X-Id":   {"1"},
	})
	want := map[string][]string{"accept": {"a", "b"}, "x-id": {"1"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LowerCaseHeaders() = %v, want %v", got, want)
	}
}
