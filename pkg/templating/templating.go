// Package templating turns the loaded menu data into HTML using Jinja-style
// templates ({{ data.title }}, {% for item in data.items %}).
package templating

import (
	"fmt"
	"os"

	"github.com/flosch/pongo2/v6"
)

// DataKey is the name the template sees the document result under.
const DataKey = "data"

// Output is written verbatim like a plain jinja2.Template; templates opt in
// with |escape where they need it.
func init() {
	pongo2.SetAutoescape(false)
}

// Render executes src with data bound to DataKey.
func Render(src string, data interface{}) (string, error) {
	tpl, err := pongo2.FromString(src)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	out, err := tpl.Execute(pongo2.Context{DataKey: data})
	if err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return out, nil
}

// RenderFile reads the template at path and renders it.
func RenderFile(path string, data interface{}) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template: %w", err)
	}
	return Render(string(src), data)
}
