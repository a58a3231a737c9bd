/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"path"
	"regexp"
	"strings"

	"github.com/Masterminds/sprig/v3"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template identifies one of the transactional email templates shipped with
// the service. The set is closed: rendering any other identifier fails with
// ErrUnknownTemplate.
type Template string

const (
	TemplateWelcome           Template = "welcome"
	TemplatePasswordReset     Template = "password-reset"
	TemplateEmailVerification Template = "email-verification"
	TemplateTripInvitation    Template = "trip-invitation"
	TemplateTripItinerary     Template = "trip-itinerary"
)

// templateFiles maps template identifiers to their embedded source file.
var templateFiles = map[Template]string{
	TemplateWelcome:           "templates/welcome.html",
	TemplatePasswordReset:     "templates/password_reset.html",
	TemplateEmailVerification: "templates/email_verification.html",
	TemplateTripInvitation:    "templates/trip_invitation.html",
	TemplateTripItinerary:     "templates/trip_itinerary.html",
}

var templates = func() map[Template]*template.Template {
	parsed := make(map[Template]*template.Template, len(templateFiles))
	for name, file := range templateFiles {
		parsed[name] = template.Must(
			template.New(path.Base(file)).Funcs(sprig.HtmlFuncMap()).ParseFS(templateFS, file),
		)
	}
	return parsed
}()

// Content is a rendered email body pair. Text is derived from the HTML
// rendering so plain-text clients always receive something readable.
type Content struct {
	HTML string
	Text string
}

// Render produces the HTML and plain-text bodies for the named template.
// Unknown template identifiers return ErrUnknownTemplate; missing variables
// render as their zero value the way html/template always does.
func Render(name Template, variables map[string]any) (Content, error) {
	tmpl, ok := templates[name]
	if !ok {
		return Content{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, variables); err != nil {
		return Content{}, fmt.Errorf("render template %q: %w", name, err)
	}
	html := buf.String()
	return Content{HTML: html, Text: stripTags(html)}, nil
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`[ \t]*\n[ \t\n]*`)
)

// stripTags reduces an HTML body to a plain-text approximation suitable as
// the text/plain alternative part.
func stripTags(html string) string {
	text := tagPattern.ReplaceAllString(html, "")
	text = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&#39;", "'",
		"&#34;", `"`,
		"&ndash;", "-",
	).Replace(text)
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, "\n"))
}
