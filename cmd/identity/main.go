// This is a **development identity provider stub**. It stands in for the
// real external identity provider during local runs and tests: email and
// password sign-in against accounts configured via environment, refresh
// tokens held in memory, and HS256-signed identity tokens.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultPort   = "8081"       // Default port for the identity stub
	defaultSecret = "jwt_secret" // Secret for signing identity tokens
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialResponse struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
}

type tokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type stub struct {
	secret   string
	accounts map[string]string // email -> password

	mu       sync.Mutex
	sessions map[string]string // refresh token -> email
}

// loadAccounts parses IDENTITY_ACCOUNTS ("email:password,email:password").
func loadAccounts() map[string]string {
	accounts := map[string]string{}
	raw := os.Getenv("IDENTITY_ACCOUNTS")
	if raw == "" {
		raw = "acme@co.com:password"
	}
	for _, pair := range strings.Split(raw, ",") {
		email, password, ok := strings.Cut(pair, ":")
		if ok {
			accounts[strings.TrimSpace(email)] = password
		}
	}
	return accounts
}

func (s *stub) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	password, ok := s.accounts[req.Email]
	if !ok || password != req.Password {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	refresh := uuid.NewString()
	s.mu.Lock()
	s.sessions[refresh] = req.Email
	s.mu.Unlock()

	writeJSON(w, credentialResponse{
		UID:          uuid.NewString(),
		Email:        req.Email,
		RefreshToken: refresh,
	})
}

func (s *stub) token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	email, ok := s.sessions[req.RefreshToken]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown session", http.StatusUnauthorized)
		return
	}

	token, err := generateToken(email, s.secret)
	if err != nil {
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, tokenResponse{Token: token})
}

func (s *stub) signOut(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	delete(s.sessions, req.RefreshToken)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func main() {
	port := os.Getenv("IDENTITY_PORT")
	if port == "" {
		port = defaultPort
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = defaultSecret
	}

	s := &stub{
		secret:   secret,
		accounts: loadAccounts(),
		sessions: map[string]string{},
	}

	http.HandleFunc("POST /v1/signin", s.signIn)
	http.HandleFunc("POST /v1/token", s.token)
	http.HandleFunc("POST /v1/signout", s.signOut)

	log.Printf("Identity stub running on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}

func generateToken(email string, secret string) (string, error) {
	claims := jwt.MapClaims{
		"sub": email,                                 // Subject (account email)
		"exp": time.Now().Add(time.Hour * 24).Unix(), // Expiration time
		"iat": time.Now().Unix(),                     // Issued at time
		"iss": "identity-stub",                       // Issuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
