// Package swagger serves an OpenAPI document and a Swagger UI page for it.
//
//	//go:embed openapi.yaml
//	var spec []byte
//
//	app.Use(swagger.Handler(swagger.Config{Spec: spec, Title: "Checkout API"}))
package swagger

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type Config struct {
	// Spec is the OpenAPI document, YAML or JSON.
	Spec []byte

	// SpecURL points the UI at an external document instead of Spec.
	SpecURL string

	Title string

	// BasePath defaults to /docs.
	BasePath string
}

var page = template.Must(template.New("swagger").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
    <style>
        body { margin: 0; background: #fafafa; }
        .swagger-ui .topbar { display: none; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: {{.SpecURL}},
                dom_id: '#swagger-ui',
                deepLinking: true,
                displayRequestDuration: true,
                tryItOutEnabled: true
            });
        };
    </script>
</body>
</html>`))

// Handler serves the UI at BasePath and the document at BasePath/openapi.yaml.
// Other paths fall through.
func Handler(config Config) fiber.Handler {
	if config.Title == "" {
		config.Title = "API Documentation"
	}
	if config.BasePath == "" {
		config.BasePath = "/docs"
	}
	config.BasePath = strings.TrimRight(config.BasePath, "/")

	specPath := config.BasePath + "/openapi.yaml"
	if config.SpecURL == "" {
		config.SpecURL = specPath
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, config); err != nil {
		panic("swagger: render page: " + err.Error())
	}
	html := buf.Bytes()

	contentType := "application/yaml"
	if trimmed := bytes.TrimSpace(config.Spec); len(trimmed) > 0 && trimmed[0] == '{' {
		contentType = fiber.MIMEApplicationJSON
	}

	return func(c *fiber.Ctx) error {
		switch c.Path() {
		case config.BasePath, config.BasePath + "/":
			c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
			return c.Send(html)
		case specPath:
			if len(config.Spec) == 0 {
				return fiber.ErrNotFound
			}
			c.Set(fiber.HeaderContentType, contentType)
			return c.Send(config.Spec)
		}
		return c.Next()
	}
}
