package docs

import "github.com/swaggo/swag"

// @title           Driver Engine API
// @version         1.0
// @description     Driver performance scoring, dispatch ranking, earnings limits and penalty evaluation for the fleet platform.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3010
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// InstanceName is the swagger instance served at /swagger/.
const InstanceName = "engine"

const engineTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/health": {"get": {"tags": ["Health"], "summary": "Health Check", "responses": {"200": {"description": "OK"}}}},
        "/drivers/{driver_id}/performance": {"get": {"tags": ["Performance"], "summary": "Driver performance", "security": [{"BearerAuth": []}], "parameters": [{"name": "driver_id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}},
        "/dispatch/rank": {"post": {"tags": ["Dispatch"], "summary": "Rank dispatch candidates", "security": [{"BearerAuth": []}], "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"type": "object"}}], "responses": {"200": {"description": "OK"}}}},
        "/drivers/{driver_id}/earnings": {"post": {"tags": ["Earnings"], "summary": "Record a trip earning", "security": [{"BearerAuth": []}], "parameters": [{"name": "driver_id", "in": "path", "required": true, "type": "string"}, {"name": "request", "in": "body", "required": true, "schema": {"type": "object"}}], "responses": {"200": {"description": "OK"}}}},
        "/drivers/{driver_id}/earnings/daily": {"get": {"tags": ["Earnings"], "summary": "Daily earnings state", "security": [{"BearerAuth": []}], "parameters": [{"name": "driver_id", "in": "path", "required": true, "type": "string"}, {"name": "date", "in": "query", "type": "string"}, {"name": "franchise_id", "in": "query", "type": "string"}], "responses": {"200": {"description": "OK"}}}},
        "/earnings/settlement/preview": {"post": {"tags": ["Earnings"], "summary": "Preview a monthly settlement", "security": [{"BearerAuth": []}], "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"type": "object"}}], "responses": {"200": {"description": "OK"}}}},
        "/drivers/{driver_id}/settlements/{month}": {"post": {"tags": ["Earnings"], "summary": "Settle a finished month", "security": [{"BearerAuth": []}], "parameters": [{"name": "driver_id", "in": "path", "required": true, "type": "string"}, {"name": "month", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}}},
        "/penalties/events": {"post": {"tags": ["Penalties"], "summary": "Evaluate a driver event", "security": [{"BearerAuth": []}], "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"type": "object"}}], "responses": {"200": {"description": "OK"}, "202": {"description": "Accepted"}}}},
        "/drivers/{driver_id}/penalties": {
            "get": {"tags": ["Penalties"], "summary": "Driver penalties", "security": [{"BearerAuth": []}], "parameters": [{"name": "driver_id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Penalties"], "summary": "Apply a manual penalty", "security": [{"BearerAuth": []}], "parameters": [{"name": "driver_id", "in": "path", "required": true, "type": "string"}, {"name": "request", "in": "body", "required": true, "schema": {"type": "object"}}], "responses": {"200": {"description": "OK"}, "202": {"description": "Accepted"}}}
        },
        "/ws/admin/penalties": {"get": {"tags": ["Penalties"], "summary": "Live penalty feed", "parameters": [{"name": "token", "in": "query", "type": "string"}], "responses": {"101": {"description": "Switching Protocols"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:3010",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Driver Engine API",
	Description:      "Driver performance scoring, dispatch ranking, earnings limits and penalty evaluation for the fleet platform.",
	InfoInstanceName: InstanceName,
	SwaggerTemplate:  engineTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
