// Package rextest runs an in-process fake of the REX API for tests. It
// issues short-lived HS256 tokens and serves search/read over a fixed set
// of listing rows.
package rextest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

const (
	Username = "agent@example.com"
	Password = "secret"
)

// SearchRequest is the decoded body of a search call.
type SearchRequest struct {
	Limit        int               `json:"limit"`
	Offset       int               `json:"offset"`
	OrderBy      map[string]string `json:"order_by"`
	ResultFormat string            `json:"result_format"`
	ExtraOptions map[string]any    `json:"extra_options"`
	Criteria     []map[string]any  `json:"criteria"`
}

// Server is a fake REX API.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	searchStatus func(offset int) int
	secret       []byte
	seq          int
	revoked      map[string]bool
	rows         []json.RawMessage
	calls        map[string]int
	searches     []SearchRequest
	tokens       []string
	lifetime     []int
}

// NewServer starts a fake REX API and closes it when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		secret:  []byte("rextest-signing-key"),
		revoked: map[string]bool{},
		calls:   map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/rex/Authentication/login", s.handleLogin)
	mux.HandleFunc("POST /v1/rex/{feed}/search", s.authorized(s.handleSearch))
	mux.HandleFunc("POST /v1/rex/{feed}/read", s.authorized(s.handleRead))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the value to configure as the REX base URL.
func (s *Server) BaseURL() string {
	return s.URL + "/v1/rex/"
}

// Row builds a listing row. published is epoch seconds (0 for none).
func Row(id int64, state string, published int64) json.RawMessage {
	row := map[string]any{
		"id":                   id,
		"system_listing_state": state,
		"property": map[string]any{
			"adr_street_name": fmt.Sprintf("Street %d", id),
		},
	}
	if published > 0 {
		row["system_publication_time"] = published
	}
	b, _ := json.Marshal(row)
	return b
}

// FailSearches makes search answer with the status fn returns for a page
// offset. Zero or 200 serves the page normally.
func (s *Server) FailSearches(fn func(offset int) int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchStatus = fn
}

// SetRows replaces the listings served by search and read.
func (s *Server) SetRows(rows ...json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
}

// ExpireTokens invalidates every token issued so far.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tok := range s.tokens {
		s.revoked[tok] = true
	}
}

// Calls returns how many requests hit the endpoint ("login", "search", "read").
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// Searches returns the search bodies received so far.
func (s *Server) Searches() []SearchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SearchRequest(nil), s.searches...)
}

// Tokens returns the tokens issued so far, oldest first.
func (s *Server) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

// TokenLifetimes returns the token_lifetime values sent with each login.
func (s *Server) TokenLifetimes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.lifetime...)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email         string `json:"email"`
		Password      string `json:"password"`
		TokenLifetime int    `json:"token_lifetime"`
	}
	if err := decode(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.calls["login"]++
	s.lifetime = append(s.lifetime, body.TokenLifetime)
	s.mu.Unlock()

	if body.Email != Username || body.Password != Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
		return
	}

	tok, err := s.issue(time.Duration(max(body.TokenLifetime, 1)) * time.Hour)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": tok})
}

func (s *Server) issue(lifetime time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	claims := jwt.RegisteredClaims{
		ID:        strconv.Itoa(s.seq),
		Subject:   Username,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(lifetime)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}
	s.tokens = append(s.tokens, tok)
	return tok, nil
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !s.valid(tok) {
			s.mu.Lock()
			s.calls["unauthorized"]++
			s.mu.Unlock()
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "token expired"})
			return
		}
		next(w, r)
	}
}

func (s *Server) valid(tok string) bool {
	if tok == "" {
		return false
	}
	s.mu.Lock()
	revoked := s.revoked[tok]
	s.mu.Unlock()
	if revoked {
		return false
	}
	_, err := jwt.ParseWithClaims(tok, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err == nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.calls["search"]++
	s.searches = append(s.searches, req)
	rows := s.rows
	hook := s.searchStatus
	s.mu.Unlock()

	if hook != nil {
		if status := hook(req.Offset); status != 0 && status != http.StatusOK {
			writeJSON(w, status, map[string]any{"error": "forced failure"})
			return
		}
	}

	start := min(max(req.Offset, 0), len(rows))
	end := len(rows)
	if req.Limit > 0 {
		end = min(start+req.Limit, len(rows))
	}
	page := rows[start:end]
	if page == nil {
		page = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result": map[string]any{"rows": page, "total": len(rows)},
	})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int64 `json:"id"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	s.mu.Lock()
	s.calls["read"]++
	rows := s.rows
	s.mu.Unlock()

	for _, row := range rows {
		var head struct {
			ID int64 `json:"id"`
		}
		if json.Unmarshal(row, &head) == nil && head.ID == req.ID {
			writeJSON(w, http.StatusOK, map[string]any{"result": row})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": nil})
}

func decode(r *http.Request, v any) error {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
