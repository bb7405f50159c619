package handlers

import (
	"encoding/json"
	"net/http"
)

const apiTitle = "River Post-Processing Run Archive"

type schema map[string]interface{}

func queryParam(name, description string, s schema) schema {
	return schema{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      s,
	}
}

func pathID() schema {
	return schema{
		"name":        "id",
		"in":          "path",
		"description": "Run identifier (UUID)",
		"required":    true,
		"schema":      schema{"type": "string"},
	}
}

func jsonResponse(description string, s schema) schema {
	return schema{
		"description": description,
		"content": schema{
			"application/json": schema{"schema": s},
		},
	}
}

func errorResponse(description string) schema {
	return jsonResponse(description, schema{"$ref": "#/components/schemas/Error"})
}

func nullableNumber() schema {
	return schema{"type": "number", "nullable": true}
}

// openAPIDocument describes the archive endpoints registered by ArchiveHandler
func openAPIDocument() schema {
	return schema{
		"openapi": "3.0.0",
		"info": schema{
			"title":       apiTitle,
			"description": "Read-only access to archived runs of the river post-processing utilities",
			"version":     "1.0.0",
		},
		"servers": []schema{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": schema{
			"/api/runs": schema{
				"get": schema{
					"summary":     "List runs",
					"description": "Archived utility runs, newest first",
					"parameters": []schema{
						queryParam("tool", "Filter by utility name, e.g. digest-statistics", schema{"type": "string"}),
						queryParam("status", "Filter by outcome", schema{"type": "string", "enum": []string{"success", "failure"}}),
						queryParam("page", "Page number (default: 1)", schema{"type": "integer", "default": 1}),
						queryParam("limit", "Records per page (default: 100, max: 1000)", schema{"type": "integer", "default": 100}),
					},
					"responses": schema{
						"200": jsonResponse("Successful response", schema{
							"type": "object",
							"properties": schema{
								"data":        schema{"type": "array", "items": schema{"$ref": "#/components/schemas/Run"}},
								"total":       schema{"type": "integer"},
								"page":        schema{"type": "integer"},
								"limit":       schema{"type": "integer"},
								"total_pages": schema{"type": "integer"},
							},
						}),
						"400": errorResponse("Invalid filter"),
					},
				},
			},
			"/api/runs/{id}": schema{
				"get": schema{
					"summary":    "Get run",
					"parameters": []schema{pathID()},
					"responses": schema{
						"200": jsonResponse("Successful response", schema{"$ref": "#/components/schemas/Run"}),
						"404": errorResponse("Unknown run"),
					},
				},
			},
			"/api/runs/{id}/digest": schema{
				"get": schema{
					"summary":     "Get digest rows",
					"description": "Summary rows (mean, median, 68%) stored by a digest-statistics run",
					"parameters":  []schema{pathID()},
					"responses": schema{
						"200": jsonResponse("Successful response", schema{
							"type":  "array",
							"items": schema{"$ref": "#/components/schemas/DigestRow"},
						}),
						"404": errorResponse("Unknown run"),
					},
				},
			},
			"/health": schema{
				"get": schema{
					"summary": "Health check",
					"responses": schema{
						"200": jsonResponse("API and archive are healthy", schema{
							"type": "object",
							"properties": schema{
								"status":    schema{"type": "string"},
								"timestamp": schema{"type": "string", "format": "date-time"},
							},
						}),
						"503": errorResponse("Archive database unavailable"),
					},
				},
			},
			"/metrics": schema{
				"get": schema{
					"summary": "Prometheus metrics",
					"responses": schema{
						"200": schema{
							"description": "Prometheus metrics in text format",
							"content": schema{
								"text/plain": schema{"schema": schema{"type": "string"}},
							},
						},
					},
				},
			},
		},
		"components": schema{
			"schemas": schema{
				"Run": schema{
					"type": "object",
					"properties": schema{
						"id":          schema{"type": "string"},
						"tool":        schema{"type": "string"},
						"arguments":   schema{"type": "string"},
						"status":      schema{"type": "string"},
						"exit_code":   schema{"type": "integer"},
						"rows_in":     schema{"type": "integer"},
						"rows_out":    schema{"type": "integer"},
						"message":     schema{"type": "string"},
						"started_at":  schema{"type": "string", "format": "date-time"},
						"duration_ms": schema{"type": "integer"},
					},
				},
				"DigestRow": schema{
					"type": "object",
					"properties": schema{
						"run_id": schema{"type": "string"},
						"label":  schema{"type": "string"},
						"nrmse":  nullableNumber(),
						"nbias":  nullableNumber(),
						"nstde":  nullableNumber(),
						"nash":   nullableNumber(),
					},
				},
				"Error": schema{
					"type": "object",
					"properties": schema{
						"error":   schema{"type": "string"},
						"message": schema{"type": "string"},
						"code":    schema{"type": "integer"},
					},
				},
			},
		},
	}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the run archive API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openAPIDocument())
}
