// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/memberdir/memberdir/internal/session"
)

// Cookie names. The session cookie carries the opaque token; the other
// two are short-lived HMAC-signed carriers for anonymous requests,
// cleared as soon as they are read.
const (
	sessionCookieName  = "memberdir_session"
	flashCookieName    = "memberdir_flash"
	returnToCookieName = "memberdir_return_to"
)

// setSessionCookie hands the opaque token to the client. HTTP-only
// always; Secure in any TLS deployment; max-age matches the session
// TTL so the cookie and the server-side record expire together.
func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie removes the session cookie from the client.
func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionToken reads the opaque token from the request, "" if absent.
func sessionToken(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// sign computes an HMAC-SHA256 signature over the payload with the
// externally supplied session secret.
func (s *Server) sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(payload)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// encodeSigned packs payload as base64(payload).base64(hmac).
func (s *Server) encodeSigned(payload []byte) string {
	return base64.RawURLEncoding.EncodeToString(payload) + "." + s.sign(payload)
}

// decodeSigned verifies and unpacks a signed cookie value. Returns nil
// for anything tampered with or malformed.
func (s *Server) decodeSigned(value string) []byte {
	body, sig, ok := strings.Cut(value, ".")
	if !ok {
		return nil
	}
	payload, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(s.sign(payload)), []byte(sig)) != 1 {
		return nil
	}
	return payload
}

// pushCookieFlash queues a flash notice for an anonymous request via a
// signed one-shot cookie. Authenticated requests queue flashes on the
// session instead.
func (s *Server) pushCookieFlash(w http.ResponseWriter, r *http.Request, flashes []session.Flash) {
	// Preserve any notices already queued but not yet rendered.
	existing := s.readCookieFlash(r)
	flashes = append(existing, flashes...)

	payload, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    s.encodeSigned(payload),
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// readCookieFlash returns queued cookie flashes without clearing them.
func (s *Server) readCookieFlash(r *http.Request) []session.Flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}
	payload := s.decodeSigned(c.Value)
	if payload == nil {
		return nil
	}
	var flashes []session.Flash
	if err := json.Unmarshal(payload, &flashes); err != nil {
		return nil
	}
	return flashes
}

// drainCookieFlash returns queued cookie flashes and clears the cookie.
func (s *Server) drainCookieFlash(w http.ResponseWriter, r *http.Request) []session.Flash {
	flashes := s.readCookieFlash(r)
	if _, err := r.Cookie(flashCookieName); err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     flashCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.cookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return flashes
}

// stashReturnTo remembers the path an anonymous request attempted to
// reach so a successful login can resume there.
func (s *Server) stashReturnTo(w http.ResponseWriter, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     returnToCookieName,
		Value:    s.encodeSigned([]byte(path)),
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeReturnTo returns the stashed path and clears the stash. Only
// same-site relative paths are honored; anything else is discarded.
func (s *Server) takeReturnTo(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(returnToCookieName)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     returnToCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	payload := s.decodeSigned(c.Value)
	if payload == nil {
		return ""
	}
	path := string(payload)
	// Reject absolute URLs and protocol-relative tricks; resume targets
	// stay on this site.
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return ""
	}
	return path
}
