package handlers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/dvloznov/expense-tracker/internal/api/middleware"
	"github.com/dvloznov/expense-tracker/internal/domain"
	"github.com/dvloznov/expense-tracker/internal/extraction"
	"github.com/dvloznov/expense-tracker/internal/gcsuploader"
	infra "github.com/dvloznov/expense-tracker/internal/infra/bigquery"
	"github.com/dvloznov/expense-tracker/internal/importer"
	"github.com/dvloznov/expense-tracker/internal/jobs"
	"github.com/dvloznov/expense-tracker/internal/logger"
	"github.com/dvloznov/expense-tracker/internal/wizard"
	"github.com/google/uuid"
)

// DocumentStore records uploaded statement files.
type DocumentStore interface {
	InsertDocument(ctx context.Context, row *infra.DocumentRow) error
	FindDocumentByChecksum(ctx context.Context, owner, checksum string) (*infra.DocumentRow, error)
}

// CategoryLister lists the category catalog.
type CategoryLister interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// WizardsHandler serves the add-expenses wizard and its three steps.
type WizardsHandler struct {
	manager   *wizard.Manager
	documents DocumentStore
	files     gcsuploader.ObjectStore
	publisher jobs.Publisher
	jobStore  jobs.JobStore
	catalog   CategoryLister
	notices   *Notices
	maxUpload int64
	now       func() time.Time
}

// WizardsConfig wires a WizardsHandler.
type WizardsConfig struct {
	Manager   *wizard.Manager
	Documents DocumentStore
	Files     gcsuploader.ObjectStore
	Publisher jobs.Publisher
	JobStore  jobs.JobStore
	Catalog   CategoryLister
	Notices   *Notices
	MaxUpload int64
}

// NewWizardsHandler creates a new wizards handler.
func NewWizardsHandler(cfg WizardsConfig) *WizardsHandler {
	maxUpload := cfg.MaxUpload
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	return &WizardsHandler{
		manager:   cfg.Manager,
		documents: cfg.Documents,
		files:     cfg.Files,
		publisher: cfg.Publisher,
		jobStore:  cfg.JobStore,
		catalog:   cfg.Catalog,
		notices:   cfg.Notices,
		maxUpload: maxUpload,
		now:       time.Now,
	}
}

// wizard loads the {id} wizard for the caller, writing the error response
// when that fails.
func (h *WizardsHandler) wizard(w http.ResponseWriter, r *http.Request) (*wizard.Wizard, bool) {
	wz, err := h.manager.Get(r.PathValue("id"), claims(r).Email)
	if err != nil {
		writeErr(w, r, err, "Failed to load wizard")
		return nil, false
	}
	return wz, true
}

// Create handles POST /api/wizards
func (h *WizardsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Step *int `json:"step"`
	}
	if r.ContentLength > 0 && !decode(w, r, &req) {
		return
	}

	opts := []wizard.Option{wizard.WithStepChange(func(id string, from, to wizard.Step) {
		log := logger.FromContext(r.Context())
		log.Debug().Str("wizard_id", id).Stringer("from", from).Stringer("to", to).Msg("wizard step changed")
	})}
	if req.Step != nil {
		s := wizard.Step(*req.Step)
		if !s.Valid() {
			writeErr(w, r, wizard.ErrInvalidStep, "Invalid initial step")
			return
		}
		opts = append(opts, wizard.WithInitialStep(s))
	}

	wz := h.manager.Create(claims(r).Email, opts...)
	middleware.WriteJSON(w, http.StatusCreated, wz.State())
}

// Get handles GET /api/wizards/{id}
func (h *WizardsHandler) Get(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, wz.State())
}

// Delete handles DELETE /api/wizards/{id}
func (h *WizardsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(r.PathValue("id"), claims(r).Email); err != nil {
		writeErr(w, r, err, "Failed to delete wizard")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Next handles POST /api/wizards/{id}/next
func (h *WizardsHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*wizard.Wizard).Next)
}

// Previous handles POST /api/wizards/{id}/previous
func (h *WizardsHandler) Previous(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*wizard.Wizard).Previous)
}

func (h *WizardsHandler) navigate(w http.ResponseWriter, r *http.Request, move func(*wizard.Wizard) (wizard.Step, error)) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	if _, err := move(wz); err != nil {
		writeErr(w, r, err, "Failed to change step")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, wz.State())
}

// SetStep handles PUT /api/wizards/{id}/step
func (h *WizardsHandler) SetStep(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	var req struct {
		Step int `json:"step"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := wz.SetStep(wizard.Step(req.Step)); err != nil {
		writeErr(w, r, err, "Failed to set step")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, wz.State())
}

// Save handles POST /api/wizards/{id}/save
// The batch is persisted by a background job; calling Save again after that
// job failed re-queues it.
func (h *WizardsHandler) Save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}

	batch, err := wz.Save()
	if errors.Is(err, wizard.ErrSaved) {
		batch, err = h.resumableBatch(ctx, wz)
	}
	if err != nil {
		writeErr(w, r, err, "Failed to save batch")
		return
	}

	job := &jobs.Job{
		Type:       jobs.JobTypePersistBatch,
		WizardID:   wz.ID(),
		Owner:      wz.Owner(),
		DocumentID: batch.DocumentID,
		BatchID:    batch.ID,
	}
	if err := h.publisher.Publish(ctx, job); err != nil {
		writeErr(w, r, err, "Failed to enqueue persist job")
		return
	}

	log := logger.FromContext(ctx)
	log.Info().Str("job_id", job.JobID).Str("batch_id", batch.ID).Int("items", len(batch.Items)).Msg("Persist job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   job.JobID,
		"batch_id": batch.ID,
		"items":    len(batch.Items),
		"state":    wz.State(),
	})
}

// resumableBatch returns the saved batch when no persist job for it is
// pending, running or done.
func (h *WizardsHandler) resumableBatch(ctx context.Context, wz *wizard.Wizard) (wizard.Batch, error) {
	batch, ok := wz.SavedBatch()
	if !ok || h.jobStore == nil {
		return wizard.Batch{}, wizard.ErrSaved
	}
	existing, err := h.jobStore.ListJobs(ctx, jobs.JobFilter{WizardID: wz.ID(), Type: jobs.JobTypePersistBatch})
	if err != nil {
		return wizard.Batch{}, err
	}
	for _, j := range existing {
		if j.Status != jobs.JobStatusFailed {
			return wizard.Batch{}, wizard.ErrSaved
		}
	}
	return batch, nil
}

// UploadFile handles POST /api/wizards/{id}/import/file
// The body is a multipart form with the statement PDF in the "file" field.
// Re-uploading a file the user already uploaded reuses its document.
func (h *WizardsHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	owner := claims(r).Email
	log := logger.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read file")
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "File is empty")
		return
	}
	if http.DetectContentType(data) != "application/pdf" {
		middleware.WriteError(w, http.StatusUnsupportedMediaType, "Only PDF statements are supported")
		return
	}

	filename := filepath.Base(header.Filename)
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	existing, err := h.documents.FindDocumentByChecksum(ctx, owner, checksum)
	if err != nil {
		writeErr(w, r, err, "Failed to look up document")
		return
	}

	uploadedAt := h.now()
	f := importer.File{
		Name:        filename,
		ContentType: "application/pdf",
		Size:        int64(len(data)),
		UploadedAt:  uploadedAt,
	}
	if existing != nil {
		f.DocumentID = existing.DocumentID
		f.ObjectURI = existing.ObjectURI
		log.Info().Str("document_id", f.DocumentID).Msg("Reusing previously uploaded document")
	} else {
		f.DocumentID = uuid.NewString()
		name := gcsuploader.ObjectName(owner, f.DocumentID, filename, uploadedAt)
		f.ObjectURI, err = h.files.Put(ctx, name, f.ContentType, bytes.NewReader(data))
		if err != nil {
			writeErr(w, r, err, "Failed to upload file")
			return
		}
		row := &infra.DocumentRow{
			DocumentID:       f.DocumentID,
			Owner:            owner,
			ObjectURI:        f.ObjectURI,
			OriginalFilename: filename,
			FileMimeType:     f.ContentType,
			SizeBytes:        f.Size,
			ChecksumSHA256:   checksum,
			UploadTS:         uploadedAt,
			ParsingStatus:    infra.DocumentPending,
		}
		if err := h.documents.InsertDocument(ctx, row); err != nil {
			writeErr(w, r, err, "Failed to save document metadata")
			return
		}
		log.Info().Str("document_id", f.DocumentID).Str("object_uri", f.ObjectURI).Int64("bytes", f.Size).Msg("File uploaded successfully")
	}

	if err := wz.SelectFile(f); err != nil {
		writeErr(w, r, err, "Failed to select file")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"import":    wz.ImportStatus(),
		"state":     wz.State(),
		"duplicate": existing != nil,
		"notice":    h.notices.Plain(ctx, NoticeSuccess, "toast.fileUploaded"),
	})
}

// ClearFile handles DELETE /api/wizards/{id}/import/file
func (h *WizardsHandler) ClearFile(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	if err := wz.ClearFile(); err != nil {
		writeErr(w, r, err, "Failed to clear file")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"import": wz.ImportStatus(),
		"state":  wz.State(),
	})
}

// Process handles POST /api/wizards/{id}/import/process
func (h *WizardsHandler) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}

	f, err := wz.BeginImport()
	if err != nil {
		writeErr(w, r, err, "Failed to start extraction")
		return
	}

	job := &jobs.Job{
		Type:       jobs.JobTypeExtractStatement,
		WizardID:   wz.ID(),
		Owner:      wz.Owner(),
		DocumentID: f.DocumentID,
		ObjectURI:  f.ObjectURI,
	}
	log := logger.FromContext(ctx)
	if err := h.publisher.Publish(ctx, job); err != nil {
		// Release the stage so the user can try again.
		outcome, cerr := wz.CompleteImport(f.DocumentID, extraction.Result{}, err)
		log.Debug().Err(cerr).Str("document_id", f.DocumentID).Str("outcome", string(outcome)).Msg("Import stage released")
		writeErr(w, r, err, "Failed to enqueue extraction job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("document_id", f.DocumentID).Msg("Extraction job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.JobID,
		"status": job.Status,
		"import": wz.ImportStatus(),
	})
}

// Import handles GET /api/wizards/{id}/import
// Clients poll it while an extraction is in flight.
func (h *WizardsHandler) Import(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	status := wz.ImportStatus()

	resp := map[string]interface{}{
		"import": status,
		"state":  wz.State(),
	}
	if n := h.importNotice(r.Context(), status.Outcome); n != nil {
		resp["notice"] = n
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

func (h *WizardsHandler) importNotice(ctx context.Context, o importer.Outcome) *Notice {
	switch o {
	case importer.OutcomeProcessed:
		return h.notices.Plain(ctx, NoticeSuccess, "toast.fileProcessed")
	case importer.OutcomeUnstructured:
		return h.notices.Plain(ctx, NoticeError, "toast.fileUnstructured")
	case importer.OutcomeFailed:
		return h.notices.Plain(ctx, NoticeError, "toast.fileFailed")
	}
	return nil
}

// Review handles GET /api/wizards/{id}/review
func (h *WizardsHandler) Review(w http.ResponseWriter, r *http.Request) {
	wz, ok := h.wizard(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, wz.Review())
}
