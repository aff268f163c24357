package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "NuxtBE Core API",
        "description": "Directory listings, billing webhooks and export jobs",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Directory", "description": "Directory items, groups, tags and interactions"},
        {"name": "Billing", "description": "Provider webhooks and customer portal"},
        {"name": "Exports", "description": "Directory export jobs and downloads"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/directory/items": {
            "get": {
                "tags": ["Directory"],
                "summary": "List directory items",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "description": "Publication status, authenticated callers only"},
                    {"name": "featured", "in": "query", "type": "boolean"},
                    {"name": "groups", "in": "query", "type": "string", "description": "Comma separated group ids, AND semantics"},
                    {"name": "tags", "in": "query", "type": "string", "description": "Comma separated tag ids, AND semantics"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "mine", "in": "query", "type": "boolean"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string", "enum": ["asc", "desc"]}
                ],
                "responses": {
                    "200": {"description": "Items with pagination", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Directory"],
                "summary": "Create a directory item",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateItemRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created item", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/directory/items/{id}": {
            "get": {
                "tags": ["Directory"],
                "summary": "Get one directory item",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Item", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Directory"],
                "summary": "Update a directory item",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateItemRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated item", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the item owner", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Directory"],
                "summary": "Delete a directory item",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "403": {"description": "Not the item owner", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/directory/items/{id}/like": {
            "post": {
                "tags": ["Directory"],
                "summary": "Toggle a like on an item",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "New like state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/directory/items/{id}/save": {
            "post": {
                "tags": ["Directory"],
                "summary": "Toggle a save on an item",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "New save state", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/directory/items/{id}/view": {
            "post": {
                "tags": ["Directory"],
                "summary": "Record a view on an item",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Recorded"}
                }
            }
        },
        "/directory/items/{id}/comments": {
            "get": {
                "tags": ["Directory"],
                "summary": "List comments on an item",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Comments newest first", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Directory"],
                "summary": "Add a comment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddCommentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created comment", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/directory/comments/{id}": {
            "delete": {
                "tags": ["Directory"],
                "summary": "Delete a comment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/directory/groups": {
            "get": {
                "tags": ["Directory"],
                "summary": "List directory groups",
                "responses": {
                    "200": {"description": "Groups", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/directory/tags": {
            "get": {
                "tags": ["Directory"],
                "summary": "List directory tags",
                "responses": {
                    "200": {"description": "Tags", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/directory/cache/clear": {
            "post": {
                "tags": ["Directory"],
                "summary": "Clear the listing cache",
                "responses": {
                    "204": {"description": "Cleared"}
                }
            }
        },
        "/webhooks/{provider}": {
            "post": {
                "tags": ["Billing"],
                "summary": "Receive a billing provider webhook",
                "parameters": [
                    {"name": "provider", "in": "path", "required": true, "type": "string", "enum": ["stripe", "lemonsqueezy"]}
                ],
                "responses": {
                    "200": {"description": "Acknowledged", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid signature or malformed event", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/billing/portal": {
            "get": {
                "tags": ["Billing"],
                "summary": "Get the billing portal URL for the caller's team",
                "parameters": [
                    {"name": "return_url", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Portal URL", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No billing customer", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports": {
            "get": {
                "tags": ["Exports"],
                "summary": "List the caller's export jobs",
                "responses": {
                    "200": {"description": "Jobs newest first", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a directory export",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Queued job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Get one export job",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the job owner", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}/download-url": {
            "get": {
                "tags": ["Exports"],
                "summary": "Issue a signed download link",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Signed token and expiry", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Job not completed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download an export file with a signed token",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateItemRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "content": {"type": "string"},
                "url": {"type": "string"},
                "image_url": {"type": "string"},
                "thumbnail_url": {"type": "string"},
                "featured": {"type": "boolean"},
                "status": {"type": "string", "enum": ["draft", "pending", "published", "archived"]},
                "metadata": {"type": "object"},
                "group_ids": {"type": "array", "items": {"type": "string"}},
                "tag_ids": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["title"]
        },
        "UpdateItemRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "content": {"type": "string"},
                "url": {"type": "string"},
                "image_url": {"type": "string"},
                "thumbnail_url": {"type": "string"},
                "featured": {"type": "boolean"},
                "status": {"type": "string", "enum": ["draft", "pending", "published", "archived"]},
                "metadata": {"type": "object"},
                "group_ids": {"type": "array", "items": {"type": "string"}},
                "tag_ids": {"type": "array", "items": {"type": "string"}}
            }
        },
        "AddCommentRequest": {
            "type": "object",
            "properties": {
                "content": {"type": "string"}
            },
            "required": ["content"]
        },
        "CreateExportRequest": {
            "type": "object",
            "properties": {
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["format"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "limit": {"type": "integer"},
                "offset": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
