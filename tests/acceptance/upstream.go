package acceptance

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const upstreamSecret = "acceptance-upstream-secret"

type upstreamUser struct {
	ID       string
	Name     string
	Email    string
	Password string
}

// fakeUpstream is an in-process stand-in for the TestFlow REST API. It
// implements just enough of the auth, people, categories and study-goals
// endpoints for the web app to run end to end.
type fakeUpstream struct {
	srv *httptest.Server

	mu           sync.Mutex
	users        map[string]*upstreamUser
	refreshCalls int
}

func newFakeUpstream() *fakeUpstream {
	u := &fakeUpstream{users: make(map[string]*upstreamUser)}
	u.srv = httptest.NewServer(http.HandlerFunc(u.handle))
	return u
}

func (u *fakeUpstream) URL() string { return u.srv.URL }

func (u *fakeUpstream) Close() { u.srv.Close() }

func (u *fakeUpstream) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.users = make(map[string]*upstreamUser)
	u.refreshCalls = 0
}

func (u *fakeUpstream) RefreshCalls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.refreshCalls
}

// AddUser seeds an account without going through /auth/register.
func (u *fakeUpstream) AddUser(name, email, password string) *upstreamUser {
	u.mu.Lock()
	defer u.mu.Unlock()
	user := &upstreamUser{ID: uuid.NewString(), Name: name, Email: email, Password: password}
	u.users[email] = user
	return user
}

func (u *fakeUpstream) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/auth/register":
		u.register(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/auth/login":
		u.login(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/auth/refresh-token":
		u.refresh(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/study-goals/user/goals":
		u.withAuth(w, r, func(user *upstreamUser) {
			writeData(w, http.StatusOK, []map[string]string{
				{"id": "g1", "name": "Pass the written exam", "categoryId": "c1"},
			})
		})
	case r.Method == http.MethodGet && r.URL.Path == "/categories":
		u.withAuth(w, r, func(user *upstreamUser) {
			writeData(w, http.StatusOK, []map[string]string{
				{"id": "c1", "name": "Driving theory"},
			})
		})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/people/user/"):
		u.withAuth(w, r, func(user *upstreamUser) {
			writeData(w, http.StatusOK, map[string]string{
				"id":     "p-" + user.ID,
				"userId": user.ID,
				"email":  user.Email,
			})
		})
	default:
		writeMessage(w, http.StatusNotFound, "not found")
	}
}

func (u *fakeUpstream) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	u.mu.Lock()
	if _, exists := u.users[body.Email]; exists {
		u.mu.Unlock()
		writeMessage(w, http.StatusConflict, "Email already registered")
		return
	}
	user := &upstreamUser{ID: uuid.NewString(), Name: body.Name, Email: body.Email, Password: body.Password}
	u.users[body.Email] = user
	u.mu.Unlock()

	u.writeAuthResponse(w, http.StatusCreated, user)
}

func (u *fakeUpstream) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	u.mu.Lock()
	user, ok := u.users[body.Email]
	u.mu.Unlock()
	if !ok || user.Password != body.Password {
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	u.writeAuthResponse(w, http.StatusOK, user)
}

func (u *fakeUpstream) refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	user, err := u.userFromToken(body.RefreshToken)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	u.mu.Lock()
	u.refreshCalls++
	u.mu.Unlock()

	u.writeAuthResponse(w, http.StatusOK, user)
}

func (u *fakeUpstream) withAuth(w http.ResponseWriter, r *http.Request, next func(user *upstreamUser)) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	user, err := u.userFromToken(raw)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	next(user)
}

func (u *fakeUpstream) userFromToken(raw string) (*upstreamUser, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(upstreamSecret), nil
	})
	if err != nil {
		return nil, err
	}

	email, _ := claims["email"].(string)
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[email]
	if !ok {
		return nil, jwt.ErrTokenInvalidSubject
	}
	return user, nil
}

func (u *fakeUpstream) writeAuthResponse(w http.ResponseWriter, status int, user *upstreamUser) {
	writeData(w, status, map[string]any{
		"accessToken":  u.signToken(user, 15*time.Minute),
		"refreshToken": u.signToken(user, 30*24*time.Hour),
		"user": map[string]string{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
		},
	})
}

// SignExpiredToken mints a token that is already past its expiry.
func (u *fakeUpstream) SignExpiredToken(user *upstreamUser) string {
	return u.signTokenAt(user, time.Now().Add(-time.Hour))
}

func (u *fakeUpstream) signToken(user *upstreamUser, ttl time.Duration) string {
	return u.signTokenAt(user, time.Now().Add(ttl))
}

func (u *fakeUpstream) signTokenAt(user *upstreamUser, expiry time.Time) string {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     expiry.Unix(),
		"iat":     time.Now().Add(-time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(upstreamSecret))
	if err != nil {
		panic(err)
	}
	return signed
}

func writeData(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": payload})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
