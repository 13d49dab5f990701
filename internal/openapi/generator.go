// Package openapi generates the OpenAPI 3.1 document describing Troy's
// HTTP surface. The route set is fixed, so the document is built once and
// cached by the serving handler.
package openapi

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// GenerateSpec builds the OpenAPI document. The commodity list is deployment
// configuration, so it is injected rather than hardcoded.
func GenerateSpec(baseURL string, commodities []string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Troy API",
			Description: "Precious-metal spot prices with API-key access.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["apiKey"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "X-API-Key",
		},
	}
	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	doc.Paths = openapi3.NewPaths()

	doc.Components.Schemas["ErrorResponse"] = errorResponseSchema()
	doc.Components.Schemas["Quote"] = quoteSchema(commodities)
	doc.Components.Schemas["APIKey"] = apiKeySchema()
	doc.Components.Schemas["Account"] = accountSchema()

	addAccountPaths(doc)
	addKeyPaths(doc)
	addPricePaths(doc)
	addSystemPaths(doc)

	return doc
}

func addAccountPaths(doc *openapi3.T) {
	credentials := objectSchema(map[string]*openapi3.Schema{
		"username": {Type: &openapi3.Types{"string"}},
		"password": {Type: &openapi3.Types{"string"}, Format: "password", MinLength: 8},
	})

	doc.Paths.Set("/api/v1/accounts", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"accounts"},
			Summary:     "Register a new account",
			OperationID: "register",
			RequestBody: jsonRequestBody("Account credentials", credentials),
			Responses: newResponses(
				response("201", "Account created", refSchema("Account")),
				errorResponse("400", "Invalid payload"),
				errorResponse("409", "Username already taken"),
			),
		},
	})

	doc.Paths.Set("/api/v1/session", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"accounts"},
			Summary:     "Log in and obtain a session token",
			OperationID: "login",
			RequestBody: jsonRequestBody("Account credentials", credentials),
			Responses: newResponses(
				response("200", "Session token issued", objectSchema(map[string]*openapi3.Schema{
					"session_token": {Type: &openapi3.Types{"string"}},
					"token_type":    {Type: &openapi3.Types{"string"}},
					"expires_in":    {Type: &openapi3.Types{"integer"}},
					"username":      {Type: &openapi3.Types{"string"}},
				})),
				errorResponse("401", "Invalid credentials"),
			),
		},
	})

	doc.Paths.Set("/api/v1/me", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"accounts"},
			Summary:     "Current account summary",
			OperationID: "me",
			Security:    bearerSecurity(),
			Responses: newResponses(
				response("200", "Authenticated account", refSchema("Account")),
				errorResponse("401", "Missing or invalid session token"),
			),
		},
	})
}

func addKeyPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/keys", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "List the account's API keys",
			OperationID: "list_keys",
			Security:    bearerSecurity(),
			Responses: newResponses(
				response("200", "API keys, oldest first", listSchema(refSchemaRef("APIKey"))),
				errorResponse("401", "Missing or invalid session token"),
			),
		},
		Post: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "Create an API key",
			Description: "The plaintext key is returned exactly once and never shown again.",
			OperationID: "create_key",
			Security:    bearerSecurity(),
			RequestBody: jsonRequestBody("Key label", objectSchema(map[string]*openapi3.Schema{
				"label": {Type: &openapi3.Types{"string"}},
			})),
			Responses: newResponses(
				response("201", "Key created; api_key field holds the one-time plaintext",
					objectSchema(map[string]*openapi3.Schema{
						"id":         {Type: &openapi3.Types{"integer"}, Format: "int64"},
						"api_key":    {Type: &openapi3.Types{"string"}},
						"key_prefix": {Type: &openapi3.Types{"string"}},
						"label":      {Type: &openapi3.Types{"string"}},
						"is_active":  {Type: &openapi3.Types{"boolean"}},
						"created_at": {Type: &openapi3.Types{"string"}, Format: "date-time"},
					})),
				errorResponse("401", "Missing or invalid session token"),
			),
		},
	})

	doc.Paths.Set("/api/v1/keys/stats", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "Aggregate key usage for the account",
			OperationID: "key_stats",
			Security:    bearerSecurity(),
			Responses: newResponses(
				response("200", "Usage totals", objectSchema(map[string]*openapi3.Schema{
					"total_keys":  {Type: &openapi3.Types{"integer"}},
					"active_keys": {Type: &openapi3.Types{"integer"}},
					"total_usage": {Type: &openapi3.Types{"integer"}, Format: "int64"},
				})),
				errorResponse("401", "Missing or invalid session token"),
			),
		},
	})

	keyIDParam := &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:     "keyID",
			In:       "path",
			Required: true,
			Schema:   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}},
		},
	}

	doc.Paths.Set("/api/v1/keys/{keyID}/toggle", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "Toggle a key's active state",
			OperationID: "toggle_key",
			Security:    bearerSecurity(),
			Parameters:  openapi3.Parameters{keyIDParam},
			Responses: newResponses(
				response("200", "Key toggled", successSchema()),
				errorResponse("401", "Missing or invalid session token"),
				errorResponse("404", "Key not found or not owned by this account"),
			),
		},
	})

	doc.Paths.Set("/api/v1/keys/{keyID}", &openapi3.PathItem{
		Delete: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "Delete a key",
			OperationID: "delete_key",
			Security:    bearerSecurity(),
			Parameters:  openapi3.Parameters{keyIDParam},
			Responses: newResponses(
				response("200", "Key deleted", successSchema()),
				errorResponse("401", "Missing or invalid session token"),
				errorResponse("404", "Key not found or not owned by this account"),
			),
		},
	})
}

func addPricePaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/commodities", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"prices"},
			Summary:     "List quoted commodities",
			OperationID: "list_commodities",
			Security:    apiKeySecurity(),
			Responses: newResponses(
				response("200", "Known commodities", listSchema(&openapi3.SchemaRef{
					Value: objectSchema(map[string]*openapi3.Schema{
						"commodity": {Type: &openapi3.Types{"string"}},
					}),
				})),
				errorResponse("401", "Missing or invalid API key"),
			),
		},
	})

	doc.Paths.Set("/api/v1/prices/{commodity}", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"prices"},
			Summary:     "Current spot price for one commodity",
			OperationID: "get_price",
			Security:    apiKeySecurity(),
			Parameters: openapi3.Parameters{
				&openapi3.ParameterRef{
					Value: &openapi3.Parameter{
						Name:     "commodity",
						In:       "path",
						Required: true,
						Schema:   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
					},
				},
			},
			Responses: newResponses(
				response("200", "Spot quote", refSchema("Quote")),
				errorResponse("401", "Missing or invalid API key"),
				errorResponse("404", "Unknown commodity"),
				errorResponse("503", "Price source unavailable"),
			),
		},
	})
}

func addSystemPaths(doc *openapi3.T) {
	doc.Paths.Set("/healthz", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Liveness probe",
			OperationID: "healthz",
			Responses: newResponses(
				response("200", "Process is running", statusSchema()),
			),
		},
	})
	doc.Paths.Set("/readyz", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"system"},
			Summary:     "Readiness probe",
			OperationID: "readyz",
			Responses: newResponses(
				response("200", "Store reachable", statusSchema()),
				errorResponse("503", "Store unreachable"),
			),
		},
	})
}

// ─── Schema builders ────────────────────────────────────────────────────────

func quoteSchema(commodities []string) *openapi3.SchemaRef {
	commodityProp := &openapi3.Schema{Type: &openapi3.Types{"string"}}
	if len(commodities) > 0 {
		commodityProp.Description = "One of: " + strings.Join(commodities, ", ")
	}
	return &openapi3.SchemaRef{
		Value: objectSchema(map[string]*openapi3.Schema{
			"commodity":  commodityProp,
			"price":      {Type: &openapi3.Types{"number"}, Format: "double"},
			"currency":   {Type: &openapi3.Types{"string"}},
			"unit":       {Type: &openapi3.Types{"string"}},
			"fetched_at": {Type: &openapi3.Types{"string"}, Format: "date-time"},
		}),
	}
}

func apiKeySchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: objectSchema(map[string]*openapi3.Schema{
			"id":          {Type: &openapi3.Types{"integer"}, Format: "int64"},
			"key_prefix":  {Type: &openapi3.Types{"string"}},
			"label":       {Type: &openapi3.Types{"string"}},
			"is_active":   {Type: &openapi3.Types{"boolean"}},
			"usage_count": {Type: &openapi3.Types{"integer"}, Format: "int64"},
			"created_at":  {Type: &openapi3.Types{"string"}, Format: "date-time"},
			"last_used":   {Type: &openapi3.Types{"string"}, Format: "date-time", Nullable: true},
		}),
	}
}

func accountSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: objectSchema(map[string]*openapi3.Schema{
			"id":         {Type: &openapi3.Types{"integer"}, Format: "int64"},
			"username":   {Type: &openapi3.Types{"string"}},
			"created_at": {Type: &openapi3.Types{"string"}, Format: "date-time"},
		}),
	}
}

func errorResponseSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: objectSchema(map[string]*openapi3.Schema{
						"code":    {Type: &openapi3.Types{"integer"}, Format: "int32"},
						"message": {Type: &openapi3.Types{"string"}},
						"context": {Type: &openapi3.Types{"object"}},
					}),
				},
			},
		},
	}
}

func successSchema() *openapi3.Schema {
	return objectSchema(map[string]*openapi3.Schema{
		"success": {Type: &openapi3.Types{"boolean"}},
		"message": {Type: &openapi3.Types{"string"}},
	})
}

func statusSchema() *openapi3.Schema {
	return objectSchema(map[string]*openapi3.Schema{
		"status": {Type: &openapi3.Types{"string"}},
	})
}

func objectSchema(props map[string]*openapi3.Schema) *openapi3.Schema {
	schemas := openapi3.Schemas{}
	for name, s := range props {
		schemas[name] = &openapi3.SchemaRef{Value: s}
	}
	return &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: schemas,
	}
}

func listSchema(item *openapi3.SchemaRef) *openapi3.Schema {
	return &openapi3.Schema{
		Type: &openapi3.Types{"object"},
		Properties: openapi3.Schemas{
			"resource": &openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: item,
				},
			},
			"meta": &openapi3.SchemaRef{
				Value: objectSchema(map[string]*openapi3.Schema{
					"count": {Type: &openapi3.Types{"integer"}},
				}),
			},
		},
	}
}

func refSchema(name string) *openapi3.Schema {
	// Wrapper so response() can take a plain schema; the ref is resolved by
	// readers of the document, not by us.
	return &openapi3.Schema{
		AllOf: openapi3.SchemaRefs{refSchemaRef(name)},
	}
}

func refSchemaRef(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef(fmt.Sprintf("#/components/schemas/%s", name), nil)
}

func jsonRequestBody(description string, schema *openapi3.Schema) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: description,
			Required:    true,
			Content:     openapi3.NewContentWithJSONSchema(schema),
		},
	}
}

// ─── Response builders ──────────────────────────────────────────────────────

type responseEntry struct {
	status string
	ref    *openapi3.ResponseRef
}

func response(status, description string, schema *openapi3.Schema) responseEntry {
	return responseEntry{
		status: status,
		ref: &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &description,
				Content:     openapi3.NewContentWithJSONSchema(schema),
			},
		},
	}
}

func errorResponse(status, description string) responseEntry {
	return responseEntry{
		status: status,
		ref: &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &description,
				Content: openapi3.NewContentWithJSONSchemaRef(
					refSchemaRef("ErrorResponse"),
				),
			},
		},
	}
}

func newResponses(entries ...responseEntry) *openapi3.Responses {
	responses := openapi3.NewResponses()
	for _, e := range entries {
		responses.Set(e.status, e.ref)
	}
	return responses
}

func bearerSecurity() *openapi3.SecurityRequirements {
	reqs := openapi3.SecurityRequirements{{"bearerAuth": {}}}
	return &reqs
}

func apiKeySecurity() *openapi3.SecurityRequirements {
	reqs := openapi3.SecurityRequirements{{"apiKey": {}}}
	return &reqs
}
