// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package web

import (
	"embed"
	"net/http"
)

//go:embed static
var staticFS embed.FS

func staticHandler() http.Handler {
	return http.FileServer(http.FS(staticFS))
}
