package acceptance

import (
	"io"
	"net/http"
	"net/url"
)

func (s *Suite) postForm(path string, form url.Values) *http.Response {
	resp, err := s.Client.PostForm(s.BaseURL+path, form)
	s.Require().NoError(err)
	return resp
}

func (s *Suite) readBody(resp *http.Response) string {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return string(body)
}

func (s *Suite) TestLoginPage() {
	resp, err := s.Client.Get(s.BaseURL + "/login")
	s.Require().NoError(err)

	body := s.readBody(resp)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, "Sign in")
}

func (s *Suite) TestLogin_Success() {
	s.Upstream.AddUser("Alice", "alice@example.com", "Password123")

	resp := s.postForm("/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"Password123"},
	})

	body := s.readBody(resp)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("/dashboard", resp.Request.URL.Path)
	s.Contains(body, "Pass the written exam")
	s.Contains(body, "Driving theory")

	base, _ := url.Parse(s.BaseURL)
	var names []string
	for _, cookie := range s.Client.Jar.Cookies(base) {
		names = append(names, cookie.Name)
	}
	s.Contains(names, "accessToken")
	s.Contains(names, "refreshToken")
}

func (s *Suite) TestLogin_WrongPassword() {
	s.Upstream.AddUser("Alice", "alice@example.com", "Password123")

	resp := s.postForm("/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"wrong-password"},
	})

	body := s.readBody(resp)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("/login", resp.Request.URL.Path)
	s.Contains(body, "Invalid email or password")

	base, _ := url.Parse(s.BaseURL)
	s.Empty(s.Client.Jar.Cookies(base))
}

func (s *Suite) TestRegister_Success() {
	resp := s.postForm("/register", url.Values{
		"name":     {"Bob"},
		"email":    {"bob@example.com"},
		"password": {"Password123"},
	})

	body := s.readBody(resp)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("/dashboard", resp.Request.URL.Path)
	s.Contains(body, "Dashboard")
}

func (s *Suite) TestRegister_DuplicateEmail() {
	s.Upstream.AddUser("Bob", "bob@example.com", "Password123")

	resp := s.postForm("/register", url.Values{
		"name":     {"Bob"},
		"email":    {"bob@example.com"},
		"password": {"Password123"},
	})

	body := s.readBody(resp)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, "Email already registered")
}

func (s *Suite) TestDashboard_RequiresAuth() {
	resp, err := s.Client.Get(s.BaseURL + "/dashboard")
	s.Require().NoError(err)
	s.readBody(resp)

	s.Equal("/login", resp.Request.URL.Path)
	s.Equal("/dashboard", resp.Request.URL.Query().Get("next"))
}

func (s *Suite) TestLogout() {
	s.Upstream.AddUser("Alice", "alice@example.com", "Password123")

	resp := s.postForm("/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"Password123"},
	})
	s.readBody(resp)

	resp = s.postForm("/logout", url.Values{})
	s.readBody(resp)
	s.Equal("/", resp.Request.URL.Path)

	resp, err := s.Client.Get(s.BaseURL + "/dashboard")
	s.Require().NoError(err)
	s.readBody(resp)
	s.Equal("/login", resp.Request.URL.Path)
}

// An expired access token with a valid refresh token must recover without
// the visitor noticing: one refresh call, then the page renders.
func (s *Suite) TestExpiredAccessTokenRefreshes() {
	user := s.Upstream.AddUser("Alice", "alice@example.com", "Password123")

	resp := s.postForm("/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"Password123"},
	})
	s.readBody(resp)

	// Swap the stored access token for one that is already expired.
	expired := s.Upstream.SignExpiredToken(user)
	base, _ := url.Parse(s.BaseURL)
	s.Client.Jar.SetCookies(base, []*http.Cookie{
		{Name: "accessToken", Value: expired},
	})

	resp, err := s.Client.Get(s.BaseURL + "/dashboard")
	s.Require().NoError(err)
	body := s.readBody(resp)

	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("/dashboard", resp.Request.URL.Path)
	s.Contains(body, "Pass the written exam")
	s.Equal(1, s.Upstream.RefreshCalls())

	// The refreshed pair must land back in the browser.
	var access string
	for _, cookie := range s.Client.Jar.Cookies(base) {
		if cookie.Name == "accessToken" {
			access = cookie.Value
		}
	}
	s.NotEmpty(access)
	s.NotEqual(expired, access)
}
