// Package apitest serves an in-memory stand-in for the console's backend so
// that packages can be tested against real HTTP round trips.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"mailconsole/internal/api"
)

const (
	ValidToken = "valid-token"
	Username   = "admin"
	Password   = "secret"
)

type Server struct {
	URL string

	mu         sync.Mutex
	calls      map[string]int
	nextID     int64
	emails     []api.Email
	users      []api.User
	smtp       api.SMTPSettings
	lastSend   *api.SendRequest
	lastSMTP   map[string]any
	sendDelay  time.Duration
	sendError  string
	wrapLists  bool
	statsDelta api.Stats
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		calls:     map[string]int{},
		nextID:    100,
		wrapLists: true,
		smtp:      api.SMTPSettings{EmailUser: "smtp@example.org", EmailPass: "stored"},
		users: []api.User{
			{ID: 1, Username: Username, Name: "Admin", CreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		},
	}

	r := gin.New()
	r.Use(s.count)

	auth := r.Group("/api/auth")
	{
		auth.POST("/login", s.login)
		auth.POST("/register", s.register)
		auth.GET("/me", s.me)
		auth.POST("/logout", s.logout)
	}
	r.GET("/api/dashboard/stats", s.stats)

	email := r.Group("/api/email")
	{
		email.GET("/history", s.history)
		email.POST("/send", s.send)
		email.DELETE("/:id", s.trash)
		email.DELETE("/:id/permanent", s.purge)
		email.GET("/credentials", s.credentials)
		email.PUT("/credentials", s.updateCredentials)
	}

	users := r.Group("/api/users")
	{
		users.GET("", s.listUsers)
		users.DELETE("/:id", s.deleteUser)
	}

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	s.URL = ts.URL
	return s
}

// Calls reports how many requests hit "METHOD /path" (route pattern).
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) LastSend() *api.SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSend
}

// LastCredentialsUpdate returns the raw PUT body of the last credentials
// update, so tests can tell an omitted field from an empty one.
func (s *Server) LastCredentialsUpdate() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSMTP
}

// FailSend makes every send respond 500 with message; "" restores success.
func (s *Server) FailSend(message string) {
	s.mu.Lock()
	s.sendError = message
	s.mu.Unlock()
}

func (s *Server) SlowSend(d time.Duration) {
	s.mu.Lock()
	s.sendDelay = d
	s.mu.Unlock()
}

// BareLists switches list endpoints to answer with bare arrays.
func (s *Server) BareLists() {
	s.mu.Lock()
	s.wrapLists = false
	s.mu.Unlock()
}

// SkewStats adds delta to the stats the server reports.
func (s *Server) SkewStats(delta api.Stats) {
	s.mu.Lock()
	s.statsDelta = delta
	s.mu.Unlock()
}

func (s *Server) AddEmail(e api.Email) api.Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	if e.Status == "" {
		e.Status = api.StatusSent
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.UpdatedAt = e.CreatedAt
	s.emails = append([]api.Email{e}, s.emails...)
	return e
}

func (s *Server) count(c *gin.Context) {
	s.mu.Lock()
	s.calls[c.Request.Method+" "+c.FullPath()]++
	s.mu.Unlock()
	c.Next()
}

func bearer(c *gin.Context) string {
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}

func (s *Server) login(c *gin.Context) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if in.Username != Username || in.Password != Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": ValidToken})
}

func (s *Server) register(c *gin.Context) {
	var in api.RegisterRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == in.Username {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
			return
		}
	}
	s.nextID++
	user := api.User{ID: s.nextID, Username: in.Username, Name: in.Name, CreatedAt: time.Now().UTC()}
	s.users = append(s.users, user)
	c.JSON(http.StatusCreated, user)
}

func (s *Server) me(c *gin.Context) {
	if bearer(c) != ValidToken {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	s.mu.Lock()
	user := s.users[0]
	s.mu.Unlock()
	c.JSON(http.StatusOK, user)
}

func (s *Server) logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (s *Server) stats(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := api.Stats{Users: len(s.users)}
	for _, e := range s.emails {
		switch e.Status {
		case api.StatusSent:
			stats.Sent++
		case api.StatusTrash:
			stats.Trash++
		}
	}
	stats.Sent += s.statsDelta.Sent
	stats.Users += s.statsDelta.Users
	stats.Trash += s.statsDelta.Trash
	c.JSON(http.StatusOK, stats)
}

func (s *Server) list(c *gin.Context, items any) {
	if s.wrapLists {
		c.JSON(http.StatusOK, gin.H{"data": items})
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) history(c *gin.Context) {
	status := api.Status(c.DefaultQuery("status", string(api.StatusSent)))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.Email{}
	for _, e := range s.emails {
		if e.Status == status {
			out = append(out, e)
		}
	}
	s.list(c, out)
}

func (s *Server) send(c *gin.Context) {
	var in api.SendRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	s.mu.Lock()
	delay, failure := s.sendDelay, s.sendError
	s.lastSend = &in
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if failure != "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": failure})
		return
	}

	created := s.AddEmail(api.Email{
		From:    in.From,
		To:      api.Recipients(in.To),
		Subject: in.Subject,
		Body:    in.Body,
		Status:  api.StatusSent,
	})
	c.JSON(http.StatusCreated, created)
}

func (s *Server) findEmail(c *gin.Context) (int, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return -1, false
	}
	for i, e := range s.emails {
		if e.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (s *Server) trash(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.findEmail(c)
	if !ok || s.emails[i].Status != api.StatusSent {
		c.JSON(http.StatusNotFound, gin.H{"error": "Email not found"})
		return
	}
	s.emails[i].Status = api.StatusTrash
	s.emails[i].UpdatedAt = time.Now().UTC()
	c.JSON(http.StatusOK, s.emails[i])
}

func (s *Server) purge(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.findEmail(c)
	if !ok || s.emails[i].Status != api.StatusTrash {
		c.JSON(http.StatusNotFound, gin.H{"message": "Email not found in trash"})
		return
	}
	s.emails = append(s.emails[:i], s.emails[i+1:]...)
	c.JSON(http.StatusOK, gin.H{"message": "Email permanently deleted"})
}

func (s *Server) credentials(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"settings": gin.H{"emailUser": s.smtp.EmailUser, "emailPass": s.smtp.EmailPass}})
}

func (s *Server) updateCredentials(c *gin.Context) {
	var in map[string]any
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSMTP = in
	if user, ok := in["emailUser"].(string); ok {
		s.smtp.EmailUser = user
	}
	if pass, ok := in["emailPass"].(string); ok {
		s.smtp.EmailPass = pass
	}
	c.JSON(http.StatusOK, gin.H{"message": "Credentials updated"})
}

func (s *Server) listUsers(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list(c, append([]api.User{}, s.users...))
}

func (s *Server) deleteUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, u := range s.users {
		if u.ID == id {
			s.users = append(s.users[:i], s.users[i+1:]...)
			c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
}
