// Package handlers implements the HTTP endpoints of the expense tracker.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dvloznov/expense-tracker/internal/api/middleware"
	"github.com/dvloznov/expense-tracker/internal/auth"
	infra "github.com/dvloznov/expense-tracker/internal/infra/bigquery"
	"github.com/dvloznov/expense-tracker/internal/importer"
	"github.com/dvloznov/expense-tracker/internal/jobs"
	"github.com/dvloznov/expense-tracker/internal/locale"
	"github.com/dvloznov/expense-tracker/internal/logger"
	"github.com/dvloznov/expense-tracker/internal/preferences"
	"github.com/dvloznov/expense-tracker/internal/reconcile"
	"github.com/dvloznov/expense-tracker/internal/wizard"
)

// Notice is a localized message the client shows after an action.
type Notice struct {
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Notice kinds.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
)

// Notices renders notices in the request's locale.
type Notices struct {
	resolver *locale.Resolver
}

// NewNotices creates a notice renderer.
func NewNotices(r *locale.Resolver) *Notices {
	return &Notices{resolver: r}
}

func (n *Notices) locale(ctx context.Context) string {
	if loc := middleware.LocaleFromContext(ctx); loc != "" {
		return loc
	}
	return n.resolver.Default()
}

// Plain builds a notice from a single-string key.
func (n *Notices) Plain(ctx context.Context, kind, key string) *Notice {
	return &Notice{Kind: kind, Title: n.resolver.Lookup(n.locale(ctx), key)}
}

// Titled builds a notice from a key with title and description children.
func (n *Notices) Titled(ctx context.Context, kind, key string) *Notice {
	loc := n.locale(ctx)
	return &Notice{
		Kind:        kind,
		Title:       n.resolver.Lookup(loc, key+".title"),
		Description: n.resolver.Lookup(loc, key+".description"),
	}
}

const tableKeys = "addExpenses.saveStep."

// TableLabels are the localized count strings shown around the
// reconciliation table.
type TableLabels struct {
	Transactions string `json:"transactionsLabel"`
	Removed      string `json:"removedLabel"`
	Selection    string `json:"selectionLabel"`
}

// TableLabels renders the count strings for a table summary. Removed counts
// the disabled set and has its own wording for zero.
func (n *Notices) TableLabels(ctx context.Context, s reconcile.Summary) TableLabels {
	loc := n.locale(ctx)
	labels := TableLabels{
		Transactions: n.resolver.Count(loc, tableKeys+"transactionSummary.total", s.ItemCount),
	}
	if s.DisabledCount == 0 {
		labels.Removed = n.resolver.Lookup(loc, tableKeys+"transactionSummary.removed.none")
	} else {
		labels.Removed = n.resolver.Count(loc, tableKeys+"transactionSummary.removed", s.DisabledCount)
	}
	if s.AllSelected {
		labels.Selection = n.resolver.Lookup(loc, tableKeys+"selectionSummary.allSelected")
	} else {
		labels.Selection = n.resolver.Format(loc, tableKeys+"selectionSummary.partialSelected", map[string]string{
			"selected": strconv.Itoa(s.SelectedCount),
			"total":    strconv.Itoa(s.ItemCount),
		})
	}
	return labels
}

// statusFor maps domain errors to an HTTP status and client message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, wizard.ErrNotFound),
		errors.Is(err, jobs.ErrJobNotFound),
		errors.Is(err, infra.ErrDocumentNotFound),
		errors.Is(err, reconcile.ErrUnknownItem),
		errors.Is(err, preferences.ErrUnknownKey),
		errors.Is(err, auth.ErrUnknownEmail):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, wizard.ErrForbidden),
		errors.Is(err, auth.ErrProtectedEntry):
		return http.StatusForbidden, "Access denied"
	case errors.Is(err, wizard.ErrStepLocked),
		errors.Is(err, wizard.ErrSaved),
		errors.Is(err, wizard.ErrNoBatch),
		errors.Is(err, importer.ErrNoFile),
		errors.Is(err, importer.ErrProcessing),
		errors.Is(err, importer.ErrAlreadyProcessed),
		errors.Is(err, importer.ErrStale),
		errors.Is(err, reconcile.ErrActionNotAllowed),
		errors.Is(err, reconcile.ErrEmptySelection),
		errors.Is(err, infra.ErrDuplicateCategory),
		errors.Is(err, auth.ErrAlreadyListed):
		return http.StatusConflict, err.Error()
	case errors.Is(err, wizard.ErrInvalidStep),
		errors.Is(err, reconcile.ErrUnknownAction),
		errors.Is(err, reconcile.ErrInvalidPageSize),
		errors.Is(err, reconcile.ErrPageOutOfRange),
		errors.Is(err, preferences.ErrInvalidValue),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, infra.ErrEmptyCategory):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, jobs.ErrQueueClosed):
		return http.StatusServiceUnavailable, "Service is shutting down"
	}
	return http.StatusInternalServerError, "Internal server error"
}

// writeErr logs err and writes the mapped response.
func writeErr(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status, text := statusFor(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
	} else {
		log.Debug().Err(err).Int("status", status).Msg(msg)
	}
	middleware.WriteError(w, status, text)
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// claims returns the caller's session claims. Routes are always behind Auth.
func claims(r *http.Request) auth.Claims {
	c, _ := auth.FromContext(r.Context())
	return c
}
