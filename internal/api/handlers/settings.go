package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dvloznov/expense-tracker/internal/api/middleware"
	"github.com/dvloznov/expense-tracker/internal/auth"
	"github.com/dvloznov/expense-tracker/internal/locale"
	"github.com/dvloznov/expense-tracker/internal/logger"
	"github.com/dvloznov/expense-tracker/internal/preferences"
)

// Members manages the whitelist.
type Members interface {
	Members() ([]auth.Member, error)
	SetListed(email string, listed bool) (auth.Entry, error)
	Add(email string) (auth.Entry, error)
}

// WhitelistHandler serves the users tab of the settings page.
type WhitelistHandler struct {
	members Members
}

// NewWhitelistHandler creates a new whitelist handler.
func NewWhitelistHandler(m Members) *WhitelistHandler {
	return &WhitelistHandler{members: m}
}

// List handles GET /api/whitelist
func (h *WhitelistHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.Members()
	if err != nil {
		writeErr(w, r, err, "Failed to read whitelist")
		return
	}
	if members == nil {
		members = []auth.Member{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"whiteListedEmails": members,
	})
}

// Update handles POST /api/whitelist
// It toggles an existing entry; listing an unknown email adds it.
func (h *WhitelistHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		IsListed bool   `json:"isListed"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		middleware.WriteError(w, http.StatusBadRequest, "email is required")
		return
	}

	entry, err := h.members.SetListed(req.Email, req.IsListed)
	status := http.StatusOK
	if errors.Is(err, auth.ErrUnknownEmail) && req.IsListed {
		entry, err = h.members.Add(req.Email)
		status = http.StatusCreated
	}
	if err != nil {
		writeErr(w, r, err, "Failed to update whitelist")
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().Str("email", entry.Email).Bool("listed", entry.IsListed).Msg("Whitelist updated")
	middleware.WriteJSON(w, status, entry)
}

// PreferencesHandler reads and writes the caller's preferences.
type PreferencesHandler struct {
	prefs preferences.Service
}

// NewPreferencesHandler creates a new preferences handler.
func NewPreferencesHandler(p preferences.Service) *PreferencesHandler {
	return &PreferencesHandler{prefs: p}
}

// Get handles GET /api/preferences/{key}
func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	v, ok, err := h.prefs.Get(claims(r).Email, key)
	if err != nil {
		writeErr(w, r, err, "Failed to read preference")
		return
	}
	if !ok {
		v = json.RawMessage("null")
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"key":   key,
		"value": v,
	})
}

// Set handles PUT /api/preferences/{key}
func (h *PreferencesHandler) Set(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	var req struct {
		Value json.RawMessage `json:"value"`
	}
	if !decode(w, r, &req) {
		return
	}
	if len(req.Value) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "value is required")
		return
	}
	if err := h.prefs.Set(claims(r).Email, key, req.Value); err != nil {
		writeErr(w, r, err, "Failed to save preference")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"key":   key,
		"value": req.Value,
	})
}

// SessionHandler serves identity, locale tables and health.
type SessionHandler struct {
	resolver *locale.Resolver
	now      func() time.Time
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(r *locale.Resolver) *SessionHandler {
	return &SessionHandler{resolver: r, now: time.Now}
}

// Me handles GET /api/me
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	c := claims(r)
	groups, perms := c.Groups, c.Permissions
	if groups == nil {
		groups = []string{}
	}
	if perms == nil {
		perms = []string{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"email":       c.Email,
		"role":        c.Role,
		"groups":      groups,
		"permissions": perms,
		"locale":      middleware.LocaleFromContext(r.Context()),
	})
}

// Locale handles GET /api/locales/{locale}
// Unknown locales get the default table with fallback set.
func (h *SessionHandler) Locale(w http.ResponseWriter, r *http.Request) {
	requested := r.PathValue("locale")
	resolved := requested
	if !h.resolver.Has(requested) {
		resolved = h.resolver.Default()
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"locale":    resolved,
		"fallback":  resolved != requested,
		"supported": h.resolver.Supported(),
		"messages":  h.resolver.Table(resolved),
	})
}

// Health handles GET /health
func (h *SessionHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   h.now().Format(time.RFC3339),
	})
}
