// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/samber/oops"

	"github.com/memberdir/memberdir/internal/auth"
	"github.com/memberdir/memberdir/internal/directory"
	"github.com/memberdir/memberdir/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// pages that exist, each parsed together with the shared layout.
var pageNames = []string{"login", "signup", "forgot", "home", "profile", "dashboard", "error"}

// pageData is the single payload handed to every template. The member
// and flash notices are explicit fields, not ambient state.
type pageData struct {
	Title   string
	Member  *auth.Member
	Flashes []session.Flash
	Error   string

	Profile *directory.Profile
	Entries []directory.Entry
}

// parseTemplates parses the layout plus each page into its own set so
// pages can all define the same "content" block.
func parseTemplates() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, oops.Code("TEMPLATE_PARSE_FAILED").
				With("page", name).
				Wrap(err)
		}
		pages[name] = t
	}
	return pages, nil
}

// render writes a page; rendering failures surface as a plain 500
// since the error page itself may be the one failing.
func (s *Server) render(w http.ResponseWriter, status int, page string, data pageData) {
	t, ok := s.templates[page]
	if !ok {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		s.logger.Error("template execute failed", "page", page, "error", err)
	}
}
