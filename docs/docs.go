// Package docs holds the generated swagger registration.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Meta"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        },
        "/rooms": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Room"],
                "summary": "List waiting rooms",
                "parameters": [
                    {"type": "integer", "description": "Page size (max 10)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        },
        "/rooms/{code}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Room"],
                "summary": "Get one room",
                "parameters": [
                    {"type": "string", "description": "Room code", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "404": {"description": "Not Found", "schema": {"type": "object"}}
                }
            }
        },
        "/rooms/{code}/messages": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Chat"],
                "summary": "Chat history",
                "parameters": [
                    {"type": "string", "description": "Room code", "name": "code", "in": "path", "required": true},
                    {"type": "integer", "description": "Max messages", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Velha Online API",
	Description:      "Room listing and chat history for the realtime tic-tac-toe backend",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
