// Package api assembles the HTTP surface: routes, handlers and the
// middleware chain around them.
package api

import (
	"net/http"

	"github.com/dvloznov/expense-tracker/internal/api/handlers"
	"github.com/dvloznov/expense-tracker/internal/api/middleware"
	"github.com/dvloznov/expense-tracker/internal/auth"
	"github.com/rs/zerolog"
)

// Handlers are the endpoint groups served by the router.
type Handlers struct {
	Session     *handlers.SessionHandler
	Wizards     *handlers.WizardsHandler
	Categories  *handlers.CategoriesHandler
	Whitelist   *handlers.WhitelistHandler
	Preferences *handlers.PreferencesHandler
	Jobs        *handlers.JobsHandler
}

// Security configures authentication and localization.
type Security struct {
	Verifier  middleware.TokenVerifier
	List      middleware.ListChecker
	Locales   middleware.LocaleSet
	Preferred middleware.PreferredLocale
}

// Routes registers every endpoint on mux.
func Routes(mux *http.ServeMux, h Handlers) {
	perm := middleware.RequirePermission

	mux.HandleFunc("GET /health", h.Session.Health)
	mux.HandleFunc("GET /api/me", h.Session.Me)
	mux.HandleFunc("GET /api/locales/{locale}", h.Session.Locale)

	mux.HandleFunc("GET /api/categories", h.Categories.ListCategories)
	mux.HandleFunc("POST /api/categories", perm(auth.PermCategories, h.Categories.CreateCategory))

	mux.HandleFunc("GET /api/whitelist", perm(auth.PermManageSettings, h.Whitelist.List))
	mux.HandleFunc("POST /api/whitelist", perm(auth.PermManageSettings, h.Whitelist.Update))

	mux.HandleFunc("GET /api/preferences/{key}", h.Preferences.Get)
	mux.HandleFunc("PUT /api/preferences/{key}", h.Preferences.Set)

	w := h.Wizards
	mux.HandleFunc("POST /api/wizards", perm(auth.PermImport, w.Create))
	mux.HandleFunc("GET /api/wizards/{id}", w.Get)
	mux.HandleFunc("DELETE /api/wizards/{id}", w.Delete)
	mux.HandleFunc("POST /api/wizards/{id}/next", w.Next)
	mux.HandleFunc("POST /api/wizards/{id}/previous", w.Previous)
	mux.HandleFunc("PUT /api/wizards/{id}/step", w.SetStep)
	mux.HandleFunc("POST /api/wizards/{id}/save", perm(auth.PermWrite, w.Save))

	mux.HandleFunc("POST /api/wizards/{id}/import/file", perm(auth.PermImport, w.UploadFile))
	mux.HandleFunc("DELETE /api/wizards/{id}/import/file", w.ClearFile)
	mux.HandleFunc("POST /api/wizards/{id}/import/process", perm(auth.PermImport, w.Process))
	mux.HandleFunc("GET /api/wizards/{id}/import", w.Import)
	mux.HandleFunc("GET /api/wizards/{id}/review", w.Review)

	mux.HandleFunc("GET /api/wizards/{id}/reconciliation", w.Reconciliation)
	mux.HandleFunc("PUT /api/wizards/{id}/reconciliation/page-size", w.SetPageSize)
	mux.HandleFunc("PUT /api/wizards/{id}/reconciliation/page", w.SetPage)
	mux.HandleFunc("PUT /api/wizards/{id}/reconciliation/selection", w.SetSelection)
	mux.HandleFunc("POST /api/wizards/{id}/reconciliation/items/{item}/actions", perm(auth.PermWrite, w.ApplyAction))
	mux.HandleFunc("POST /api/wizards/{id}/reconciliation/commit", perm(auth.PermWrite, w.Commit))
	mux.HandleFunc("GET /api/wizards/{id}/category-options", w.CategoryOptions)

	mux.HandleFunc("GET /api/jobs", h.Jobs.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.Jobs.GetJob)
}

// NewRouter builds the full handler: routes wrapped in request id, logging,
// panic recovery, CORS, authentication and locale selection.
func NewRouter(log zerolog.Logger, h Handlers, sec Security) http.Handler {
	mux := http.NewServeMux()
	Routes(mux, h)
	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.CORS,
		middleware.Auth(sec.Verifier, sec.List, "/health"),
		middleware.Locale(sec.Locales, sec.Preferred),
	)
}
