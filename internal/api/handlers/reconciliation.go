package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/expense-tracker/internal/api/middleware"
	"github.com/dvloznov/expense-tracker/internal/logger"
	"github.com/dvloznov/expense-tracker/internal/reconcile"
	"github.com/dvloznov/expense-tracker/internal/wizard"
)

func (h *WizardsHandler) tableResponse(ctx context.Context, wz *wizard.Wizard, view wizard.TableView) map[string]interface{} {
	return map[string]interface{}{
		"table":   view,
		"labels":  h.notices.TableLabels(ctx, view.Summary),
		"actions": wz.ItemActions(),
	}
}

// Reconciliation handles GET /api/wizards/{id}/reconciliation
func (h *WizardsHandler) Reconciliation(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.tableResponse(r.Context(), wz, wz.Table()))
}

// SetPageSize handles PUT /api/wizards/{id}/reconciliation/page-size
func (h *WizardsHandler) SetPageSize(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req struct {
		Size int `json:"size"`
	}
	if !decode(w, r, &req) {
		return
	}
	view, err := wz.SetPageSize(req.Size)
	if err != nil {
		writeErr(w, r, err, "Failed to set page size")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.tableResponse(r.Context(), wz, view))
}

// SetPage handles PUT /api/wizards/{id}/reconciliation/page
func (h *WizardsHandler) SetPage(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req struct {
		Page int `json:"page"`
	}
	if !decode(w, r, &req) {
		return
	}
	view, err := wz.SetPage(req.Page)
	if err != nil {
		writeErr(w, r, err, "Failed to set page")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.tableResponse(r.Context(), wz, view))
}

// SetSelection handles PUT /api/wizards/{id}/reconciliation/selection
// Unknown and disabled ids are dropped; the response carries what stuck.
func (h *WizardsHandler) SetSelection(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req struct {
		IDs []string `json:"ids"`
		All bool     `json:"all"`
	}
	if !decode(w, r, &req) {
		return
	}
	view, err := wz.Select(req.IDs, req.All)
	if err != nil {
		writeErr(w, r, err, "Failed to update selection")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.tableResponse(r.Context(), wz, view))
}

// ApplyAction handles POST /api/wizards/{id}/reconciliation/items/{item}/actions
func (h *WizardsHandler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req struct {
		Action   string `json:"action"`
		Category string `json:"category"`
	}
	if !decode(w, r, &req) {
		return
	}
	action, err := reconcile.ParseAction(req.Action)
	if err != nil {
		writeErr(w, r, err, "Invalid action")
		return
	}

	itemID := r.PathValue("item")
	changed, view, err := wz.Apply(itemID, action, req.Category)
	if err != nil {
		writeErr(w, r, err, "Failed to apply action")
		return
	}

	resp := h.tableResponse(r.Context(), wz, view)
	resp["changed"] = changed
	if changed {
		resp["notice"] = h.notices.Titled(r.Context(), NoticeSuccess, action.NoticeKey())
		log := logger.FromContext(r.Context())
		log.Debug().Str("item_id", itemID).Str("action", string(action)).Msg("Reconciliation item updated")
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Commit handles POST /api/wizards/{id}/reconciliation/commit
func (h *WizardsHandler) Commit(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	items, err := wz.Commit()
	if err != nil {
		writeErr(w, r, err, "Failed to commit selection")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"count":  len(items),
		"state":  wz.State(),
		"notice": h.notices.Titled(r.Context(), NoticeSuccess, "toast.addTransactions"),
	})
}

// CategoryOptions handles GET /api/wizards/{id}/category-options
// A catalog outage degrades to an empty list so the table stays usable.
func (h *WizardsHandler) CategoryOptions(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.wizard(w, r); !ok {
		return
	}
	titles := []string{}
	cats, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		log := logger.FromContext(r.Context())
		log.Warn().Err(err).Msg("Category catalog unavailable")
	}
	for _, c := range cats {
		titles = append(titles, c.Title)
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"options": titles,
	})
}
