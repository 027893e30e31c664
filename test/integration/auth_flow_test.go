// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MemberDir Contributors

//go:build integration

package integration

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/memberdir/memberdir/internal/auth"
)

// newClient returns a cookie-carrying client that surfaces redirects
// instead of following them.
func newClient() *http.Client {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func postForm(c *http.Client, path string, form url.Values) *http.Response {
	resp, err := c.Post(env.baseURL+path, "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	Expect(err).NotTo(HaveOccurred())
	Expect(resp.Body.Close()).To(Succeed())
	return resp
}

func getPage(c *http.Client, path string) (*http.Response, string) {
	resp, err := c.Get(env.baseURL + path)
	Expect(err).NotTo(HaveOccurred())
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(resp.Body.Close()).To(Succeed())
	return resp, string(body)
}

var _ = Describe("Account flows", func() {
	BeforeEach(func() {
		cleanupDatabase(env.ctx, env.pool)
	})

	Describe("Signup and login", func() {
		It("creates an account, stores an argon2id hash, and logs in", func() {
			c := newClient()

			resp := postForm(c, "/auth/signup", url.Values{
				"username":  {"budi"},
				"email":     {"Budi@Example.com"},
				"password":  {"secret123"},
				"password2": {"secret123"},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
			Expect(resp.Header.Get("Location")).To(Equal("/auth/login"))

			// The stored credential is a PHC argon2id string, never the
			// password, and the email was normalized.
			var email, passwordHash, role string
			err := env.pool.QueryRow(env.ctx,
				"SELECT email, password_hash, role FROM members WHERE username = $1",
				"budi",
			).Scan(&email, &passwordHash, &role)
			Expect(err).NotTo(HaveOccurred())
			Expect(email).To(Equal("budi@example.com"))
			Expect(passwordHash).To(HavePrefix("$argon2id$v="))
			Expect(passwordHash).NotTo(ContainSubstring("secret123"))
			Expect(role).To(Equal(string(auth.RoleMember)))

			resp = postForm(c, "/auth/login", url.Values{
				"username": {"budi"},
				"password": {"secret123"},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
			Expect(resp.Header.Get("Location")).To(Equal("/"))

			page, body := getPage(c, "/")
			Expect(page.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring("Welcome back, budi"))
		})

		It("persists the session across requests through the database", func() {
			c := newClient()

			postForm(c, "/auth/signup", url.Values{
				"username":  {"siti"},
				"email":     {"siti@example.com"},
				"password":  {"secret123"},
				"password2": {"secret123"},
			})
			postForm(c, "/auth/login", url.Values{
				"username": {"siti"},
				"password": {"secret123"},
			})

			var count int
			err := env.pool.QueryRow(env.ctx, "SELECT COUNT(*) FROM sessions").Scan(&count)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))

			// The stored key is a hash, not the cookie token.
			u, err := url.Parse(env.baseURL)
			Expect(err).NotTo(HaveOccurred())
			var token string
			for _, cookie := range c.Jar.Cookies(u) {
				if cookie.Name == "memberdir_session" {
					token = cookie.Value
				}
			}
			Expect(token).NotTo(BeEmpty())
			var matches int
			err = env.pool.QueryRow(env.ctx,
				"SELECT COUNT(*) FROM sessions WHERE token_hash = $1", token,
			).Scan(&matches)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(BeZero())

			page, _ := getPage(c, "/profile")
			Expect(page.StatusCode).To(Equal(http.StatusOK))
		})

		It("removes the session row on logout", func() {
			c := newClient()

			postForm(c, "/auth/signup", url.Values{
				"username":  {"siti"},
				"email":     {"siti@example.com"},
				"password":  {"secret123"},
				"password2": {"secret123"},
			})
			postForm(c, "/auth/login", url.Values{
				"username": {"siti"},
				"password": {"secret123"},
			})

			resp, _ := getPage(c, "/auth/logout")
			Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))

			var count int
			err := env.pool.QueryRow(env.ctx, "SELECT COUNT(*) FROM sessions").Scan(&count)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})
	})

	Describe("Password reset", func() {
		It("replaces the hash and invalidates the old password", func() {
			c := newClient()

			postForm(c, "/auth/signup", url.Values{
				"username":  {"budi"},
				"email":     {"budi@example.com"},
				"password":  {"oldsecret"},
				"password2": {"oldsecret"},
			})

			var before string
			err := env.pool.QueryRow(env.ctx,
				"SELECT password_hash FROM members WHERE username = $1", "budi",
			).Scan(&before)
			Expect(err).NotTo(HaveOccurred())

			resp := postForm(c, "/auth/forgot", url.Values{
				"username": {"budi"},
				"email":    {"budi@example.com"},
				"password": {"newsecret"},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
			Expect(resp.Header.Get("Location")).To(Equal("/auth/login"))

			var after string
			err = env.pool.QueryRow(env.ctx,
				"SELECT password_hash FROM members WHERE username = $1", "budi",
			).Scan(&after)
			Expect(err).NotTo(HaveOccurred())
			Expect(after).NotTo(Equal(before))

			resp = postForm(c, "/auth/login", url.Values{
				"username": {"budi"},
				"password": {"oldsecret"},
			})
			Expect(resp.Header.Get("Location")).To(Equal("/auth/login"))

			resp = postForm(c, "/auth/login", url.Values{
				"username": {"budi"},
				"password": {"newsecret"},
			})
			Expect(resp.Header.Get("Location")).To(Equal("/"))
		})
	})

	Describe("Profile directory", func() {
		It("saves a profile and lists it on the admin dashboard", func() {
			admin := newClient()
			member := newClient()

			// Seed an administrator straight through the repository.
			hash, err := env.hasher.Hash("adminpass")
			Expect(err).NotTo(HaveOccurred())
			acct, err := auth.NewMember("root", "root@example.com", hash, auth.RoleAdmin)
			Expect(err).NotTo(HaveOccurred())
			Expect(env.members.Create(env.ctx, acct)).To(Succeed())

			postForm(member, "/auth/signup", url.Values{
				"username":  {"budi"},
				"email":     {"budi@example.com"},
				"password":  {"secret123"},
				"password2": {"secret123"},
			})
			postForm(member, "/auth/login", url.Values{
				"username": {"budi"},
				"password": {"secret123"},
			})

			resp := postForm(member, "/profile", url.Values{
				"username":       {"budi"},
				"full_name":      {"Budi Santoso"},
				"student_number": {"1806123456"},
				"phone":          {"08123456789"},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))

			// A member cannot see the dashboard.
			resp, _ = getPage(member, "/dashboard")
			Expect(resp.StatusCode).To(Equal(http.StatusSeeOther))
			Expect(resp.Header.Get("Location")).To(Equal("/"))

			resp = postForm(admin, "/auth/login", url.Values{
				"username": {"root"},
				"password": {"adminpass"},
			})
			Expect(resp.Header.Get("Location")).To(Equal("/dashboard"))

			page, body := getPage(admin, "/dashboard")
			Expect(page.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(ContainSubstring("Budi Santoso"))
			Expect(body).To(ContainSubstring("1806123456"))
		})
	})
})
