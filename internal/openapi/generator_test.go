package openapi

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

var testCommodities = []string{"gold", "palladium", "platinum", "silver"}

func TestGenerateSpecDocumentShape(t *testing.T) {
	doc := GenerateSpec("http://localhost:8080", testCommodities)

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("openapi version = %q, want 3.1.0", doc.OpenAPI)
	}
	if doc.Info == nil || doc.Info.Title != "Troy API" {
		t.Error("expected Troy API title")
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://localhost:8080" {
		t.Error("expected single server entry with the given base URL")
	}
}

func TestGenerateSpecCoversAllRoutes(t *testing.T) {
	doc := GenerateSpec("http://localhost:8080", testCommodities)

	wantPaths := []string{
		"/healthz",
		"/readyz",
		"/api/v1/accounts",
		"/api/v1/session",
		"/api/v1/me",
		"/api/v1/keys",
		"/api/v1/keys/stats",
		"/api/v1/keys/{keyID}/toggle",
		"/api/v1/keys/{keyID}",
		"/api/v1/commodities",
		"/api/v1/prices/{commodity}",
	}
	for _, p := range wantPaths {
		if doc.Paths.Find(p) == nil {
			t.Errorf("missing path %s", p)
		}
	}
	if got := doc.Paths.Len(); got != len(wantPaths) {
		t.Errorf("path count = %d, want %d", got, len(wantPaths))
	}
}

func TestGenerateSpecSecuritySchemes(t *testing.T) {
	doc := GenerateSpec("http://localhost:8080", testCommodities)

	apiKey, ok := doc.Components.SecuritySchemes["apiKey"]
	if !ok || apiKey.Value.Name != "X-API-Key" || apiKey.Value.In != "header" {
		t.Error("expected apiKey scheme reading the X-API-Key header")
	}
	bearer, ok := doc.Components.SecuritySchemes["bearerAuth"]
	if !ok || bearer.Value.Scheme != "bearer" || bearer.Value.BearerFormat != "JWT" {
		t.Error("expected bearer JWT scheme")
	}

	// Prices require the API key, never the session token.
	priceOp := doc.Paths.Find("/api/v1/prices/{commodity}").Get
	if priceOp.Security == nil {
		t.Fatal("price operation must declare security")
	}
	for _, req := range *priceOp.Security {
		if _, ok := req["bearerAuth"]; ok {
			t.Error("price operation must not accept bearer tokens")
		}
	}

	// Key management requires the session token, never the API key.
	keysOp := doc.Paths.Find("/api/v1/keys").Get
	if keysOp.Security == nil {
		t.Fatal("keys operation must declare security")
	}
	for _, req := range *keysOp.Security {
		if _, ok := req["apiKey"]; ok {
			t.Error("keys operation must not accept API keys")
		}
	}
}

func TestGenerateSpecPriceResponses(t *testing.T) {
	doc := GenerateSpec("http://localhost:8080", testCommodities)

	op := doc.Paths.Find("/api/v1/prices/{commodity}").Get
	for _, status := range []string{"200", "401", "404", "503"} {
		if op.Responses.Value(status) == nil {
			t.Errorf("price operation missing %s response", status)
		}
	}

	quote := doc.Components.Schemas["Quote"]
	if quote == nil {
		t.Fatal("missing Quote schema")
	}
	desc := quote.Value.Properties["commodity"].Value.Description
	if !strings.Contains(desc, "gold") || !strings.Contains(desc, "palladium") {
		t.Errorf("commodity description should list configured commodities, got %q", desc)
	}
}

func TestServeSpec(t *testing.T) {
	h := NewHandler(testCommodities)

	req := httptest.NewRequest("GET", "http://api.example.com/openapi.json", nil)
	rr := httptest.NewRecorder()
	h.ServeSpec(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var doc struct {
		OpenAPI string                 `json:"openapi"`
		Paths   map[string]interface{} `json:"paths"`
		Servers []struct {
			URL string `json:"url"`
		} `json:"servers"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&doc); err != nil {
		t.Fatalf("decode spec: %v", err)
	}
	if doc.OpenAPI != "3.1.0" {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://api.example.com" {
		t.Errorf("servers = %+v, want request host", doc.Servers)
	}
	if _, ok := doc.Paths["/api/v1/prices/{commodity}"]; !ok {
		t.Error("rendered spec missing the price path")
	}
}
