package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Measure API",
        "description": "Water and gas meter readings recognised from photographs",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": ["http", "https"],
    "tags": [
        {"name": "Measures", "description": "Meter reading upload, confirmation and listing"},
        {"name": "Ops", "description": "Probes and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {"tags": ["Ops"], "summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}
        },
        "/ready": {
            "get": {
                "tags": ["Ops"],
                "summary": "Readiness probe, pings the database",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unreachable", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/upload": {
            "post": {
                "tags": ["Measures"],
                "summary": "Submit a meter photograph for recognition",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/UploadMeasureRequest"}}
                ],
                "responses": {
                    "200": {"description": "Recognised and stored", "schema": {"$ref": "#/definitions/UploadMeasureResponse"}},
                    "400": {"description": "INVALID_DATA", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "409": {"description": "DOUBLE_REPORT", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "413": {"description": "PAYLOAD_TOO_LARGE", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "422": {"description": "UNREADABLE_MEASURE", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "502": {"description": "RECOGNITION_FAILED", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "503": {"description": "SERVICE_UNAVAILABLE", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/confirm": {
            "patch": {
                "tags": ["Measures"],
                "summary": "Confirm or correct a recognised value, once per reading",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ConfirmMeasureRequest"}}
                ],
                "responses": {
                    "200": {"description": "Confirmed", "schema": {"$ref": "#/definitions/ConfirmMeasureResponse"}},
                    "400": {"description": "INVALID_DATA", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "404": {"description": "MEASURE_NOT_FOUND", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "409": {"description": "CONFIRMATION_DUPLICATE", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "503": {"description": "SERVICE_UNAVAILABLE", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/{customerCode}/list": {
            "get": {
                "tags": ["Measures"],
                "summary": "List a customer's readings",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "customerCode", "type": "string", "format": "uuid", "required": true},
                    {"in": "query", "name": "measure_type", "type": "string", "description": "WATER or GAS, any casing"}
                ],
                "responses": {
                    "200": {"description": "Readings", "schema": {"$ref": "#/definitions/ListMeasuresResponse"}},
                    "400": {"description": "INVALID_CUSTOMER_CODE or INVALID_TYPE", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "404": {"description": "MEASURES_NOT_FOUND", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/{customerCode}/export": {
            "get": {
                "tags": ["Measures"],
                "summary": "Download a customer's readings with values",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "path", "name": "customerCode", "type": "string", "format": "uuid", "required": true},
                    {"in": "query", "name": "measure_type", "type": "string"},
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "Attachment", "schema": {"type": "file"}},
                    "400": {"description": "INVALID_CUSTOMER_CODE, INVALID_TYPE or INVALID_EXPORT_FORMAT", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "404": {"description": "MEASURES_NOT_FOUND", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        }
    },
    "definitions": {
        "UploadMeasureRequest": {
            "type": "object",
            "required": ["image", "customer_code", "measure_datetime", "measure_type"],
            "properties": {
                "image": {"type": "string", "format": "byte"},
                "customer_code": {"type": "string", "format": "uuid"},
                "measure_datetime": {"type": "string", "format": "date-time"},
                "measure_type": {"type": "string", "enum": ["WATER", "GAS"]}
            }
        },
        "UploadMeasureResponse": {
            "type": "object",
            "properties": {
                "image_url": {"type": "string"},
                "measure_value": {"type": "number"},
                "measure_uuid": {"type": "string", "format": "uuid"}
            }
        },
        "ConfirmMeasureRequest": {
            "type": "object",
            "required": ["measure_uuid", "confirmed_value"],
            "properties": {
                "measure_uuid": {"type": "string", "format": "uuid"},
                "confirmed_value": {"type": "integer"}
            }
        },
        "ConfirmMeasureResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}}
        },
        "MeasureSummary": {
            "type": "object",
            "properties": {
                "measure_uuid": {"type": "string", "format": "uuid"},
                "measure_datetime": {"type": "string", "format": "date-time"},
                "measure_type": {"type": "string", "enum": ["WATER", "GAS"]},
                "has_confirmed": {"type": "boolean"},
                "image_url": {"type": "string"}
            }
        },
        "ListMeasuresResponse": {
            "type": "object",
            "properties": {
                "customer_code": {"type": "string", "format": "uuid"},
                "measures": {"type": "array", "items": {"$ref": "#/definitions/MeasureSummary"}}
            }
        },
        "FieldError": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "ErrorBody": {
            "type": "object",
            "properties": {
                "error_code": {"type": "string"},
                "error_description": {"description": "A message, or a list of FieldError for INVALID_DATA"}
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
