// Package migrations embeds the checkout-service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
