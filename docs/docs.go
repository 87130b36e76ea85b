// Package docs registers the OpenAPI description served at /swagger when
// SWAGGER_ENABLED is set. Regenerate with:
//
//	swag init -g cmd/donations/main.go -o docs --parseInternal
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
        "/auth/token": {"post": {"tags": ["Auth"], "summary": "Sign in (demo)", "operationId": "issueToken"}},
        "/i18n/{locale}": {"get": {"tags": ["I18n"], "summary": "Get a translation table", "operationId": "getTranslations"}},
        "/donations": {
            "get": {"tags": ["Donations"], "summary": "List donations (sorted, filtered, paginated)", "operationId": "listDonations"},
            "post": {"tags": ["Donations"], "summary": "Create a donation", "operationId": "createDonation"}
        },
        "/donations/stream": {"get": {"tags": ["Donations"], "summary": "Subscribe to collection snapshots", "operationId": "streamDonations", "produces": ["text/event-stream"]}},
        "/donations/export.tsv": {"get": {"tags": ["Exports"], "summary": "Export donations as TSV", "operationId": "exportTSV"}},
        "/donations/export.xlsx": {"get": {"tags": ["Exports"], "summary": "Export donations as an Excel workbook", "operationId": "exportXLSX"}},
        "/donations/{id}": {
            "get": {"tags": ["Donations"], "summary": "Get a donation", "operationId": "getDonation"},
            "put": {"tags": ["Donations"], "summary": "Update a donation", "operationId": "updateDonation"},
            "delete": {"tags": ["Donations"], "summary": "Delete a donation", "operationId": "deleteDonation"}
        },
        "/donations/{id}/receipt": {"get": {"tags": ["Receipts"], "summary": "Render a receipt", "operationId": "getReceipt"}},
        "/donations/{id}/receipt.pdf": {"get": {"tags": ["Receipts"], "summary": "Export a receipt as PDF", "operationId": "receiptPDF", "produces": ["application/pdf"]}},
        "/receipt": {"get": {"tags": ["Receipts"], "summary": "Render a blank receipt", "operationId": "getBlankReceipt"}},
        "/receipt.pdf": {"get": {"tags": ["Receipts"], "summary": "Export a blank receipt as PDF", "operationId": "blankReceiptPDF", "produces": ["application/pdf"]}},
        "/session": {"get": {"tags": ["Session"], "summary": "Get the caller's view state", "operationId": "getSession"}},
        "/session/view": {"put": {"tags": ["Session"], "summary": "Switch view", "operationId": "changeView"}},
        "/session/locale": {"put": {"tags": ["Session"], "summary": "Switch language", "operationId": "setLocale"}},
        "/session/sort": {"put": {"tags": ["Session"], "summary": "Change list sort", "operationId": "setSort"}},
        "/session/query": {"put": {"tags": ["Session"], "summary": "Change search text", "operationId": "setQuery"}},
        "/session/modals": {
            "post": {"tags": ["Session"], "summary": "Open a dialog", "operationId": "openModal"},
            "delete": {"tags": ["Session"], "summary": "Close the top dialog", "operationId": "closeModal"}
        },
        "/session/draft": {"put": {"tags": ["Session"], "summary": "Update the open form's draft", "operationId": "setDraft"}},
        "/session/draft/submit": {"post": {"tags": ["Session"], "summary": "Submit the open form", "operationId": "submitDraft"}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Donation Tracker API",
	Description:      "Bilingual (Arabic/English) donation records, receipts and exports.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
