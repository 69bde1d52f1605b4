package source

import (
	"net/http"
	"sync"
)

// Credentials holds optional login data for one source.
type Credentials struct {
	Username string
	Password string
	APIKey   string
}

func (c Credentials) Empty() bool {
	return c == Credentials{}
}

// Session carries the HTTP client and auth state shared by all requests
// against one source. Reads are lock-free; token refreshes go through the
// mutex so concurrent issue tasks never race a mutation.
type Session struct {
	Client *http.Client
	Creds  Credentials

	mu    sync.Mutex
	token string
}

func NewSession(client *http.Client, creds Credentials) *Session {
	if client == nil {
		client = http.DefaultClient
	}
	return &Session{Client: client, Creds: creds}
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Authorize attaches the session token to a request when one is held.
func (s *Session) Authorize(req *http.Request) {
	if t := s.Token(); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}
}
