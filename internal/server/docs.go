package server

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const openAPIRoute = "/api/openapi.yaml"

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>body{margin:0}</style>
</head>
<body>
<redoc spec-url="{{.SpecURL}}" hide-download-button></redoc>
<script src="https://cdn.jsdelivr.net/npm/redoc/bundles/redoc.standalone.js"></script>
</body>
</html>`))

type docsView struct {
	Title   string
	SpecURL string
}

// registerDocs serves the OpenAPI document from specPath and a ReDoc page
// that renders it. Nothing is mounted when specPath is empty.
func registerDocs(e *echo.Echo, specPath string) {
	if strings.TrimSpace(specPath) == "" {
		return
	}
	e.File(openAPIRoute, specPath)
	e.GET("/api/docs", func(c echo.Context) error {
		var b strings.Builder
		if err := docsPage.Execute(&b, docsView{Title: serviceName + " reference", SpecURL: openAPIRoute}); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "could not render docs").SetInternal(err)
		}
		return c.HTML(http.StatusOK, b.String())
	})
}
