// Package template expands the output file name of a batch.
package template

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

// Context holds all variables available for template resolution.
type Context struct {
	Corpus   string
	Geometry string
	// Fingerprint is the problem fingerprint, shortened to 12 hex digits.
	Fingerprint string
	Seed        int64
	Runs        int
	// Date is the batch start in YYYYMMDD form.
	Date string
}

var fileNameRE = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Render resolves template expressions in the given string.
// Uses Go's text/template syntax: {{.Corpus}}, {{.Seed}}.
// Returns the input unchanged if it contains no template delimiters.
func Render(tmpl string, ctx *Context) (string, error) {
	// Fast path: no template delimiters means no work to do.
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("template: parse: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("template: render: %w", err)
	}

	return buf.String(), nil
}

// FileName renders tmpl and checks that the result is usable as a file
// name prefix: letters, digits, '.', '_' and '-' only.
func FileName(tmpl string, ctx *Context) (string, error) {
	name, err := Render(tmpl, ctx)
	if err != nil {
		return "", err
	}
	if !fileNameRE.MatchString(name) {
		return "", fmt.Errorf("template: %q renders to %q, which is not a valid file name", tmpl, name)
	}
	return name, nil
}
