package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

type batchRequest struct {
	Rows json.RawMessage `json:"rows"`
}

type imagesBatchResponse struct {
	OK                bool                   `json:"ok"`
	InsertedOrUpdated int                    `json:"insertedOrUpdated"`
	Failures          []domain.BranchFailure `json:"failures,omitempty"`
	Error             string                 `json:"error,omitempty"`
}

type dirStateBatchResponse struct {
	OK      bool `json:"ok"`
	Updated int  `json:"updated"`
}

func (rt *Router) imagesBatch(w http.ResponseWriter, r *http.Request) {
	items, err := rt.decodeBatch(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	rows := make([]domain.RawRow, 0, len(items))
	for _, item := range items {
		var row domain.RawRow
		if err := json.Unmarshal(item, &row); err != nil {
			continue
		}
		rows = append(rows, row)
	}

	result, err := rt.deps.Images.UpsertBatch(r.Context(), rows)
	if err != nil {
		writeError(w, err)
		return
	}

	// Nothing stored and at least one branch failed: the batch as a whole failed.
	if result.Total() == 0 && len(result.Failures) > 0 {
		writeJSON(w, http.StatusInternalServerError, imagesBatchResponse{
			OK:       false,
			Failures: result.Failures,
			Error:    result.Failures[0].Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, imagesBatchResponse{
		OK:                true,
		InsertedOrUpdated: result.Total(),
		Failures:          result.Failures,
	})
}

func (rt *Router) dirStateBatch(w http.ResponseWriter, r *http.Request) {
	items, err := rt.decodeBatch(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	entries := make([]domain.DirectoryEntry, 0, len(items))
	for _, item := range items {
		var entry domain.DirectoryEntry
		if err := json.Unmarshal(item, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	updated, err := rt.deps.DirStates.RecordDirectoryStates(r.Context(), entries)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dirStateBatchResponse{OK: true, Updated: updated})
}

// decodeBatch reads {rows:[...]}. A missing or non-array rows field is an empty batch.
func (rt *Router) decodeBatch(w http.ResponseWriter, r *http.Request) ([]json.RawMessage, error) {
	body := http.MaxBytesReader(w, r.Body, rt.maxBodyBytes)
	defer body.Close()

	var req batchRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil, nil
		case errors.As(err, &tooLarge):
			return nil, domain.WrapError(domain.ErrPayloadTooLarge, "decode batch", err)
		default:
			return nil, domain.WrapError(domain.ErrInvalidInput, "decode batch", err)
		}
	}

	raw := bytes.TrimSpace(req.Rows)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode rows", err)
	}
	noteBatchRows(r, len(items))
	if rt.maxBatchRows > 0 && len(items) > rt.maxBatchRows {
		return nil, domain.WrapError(domain.ErrPayloadTooLarge, "decode rows",
			fmt.Errorf("batch has %d rows, limit is %d", len(items), rt.maxBatchRows))
	}
	return items, nil
}

// runSync answers 200 even for a failed run; the outcome is in the body.
func (rt *Router) runSync(w http.ResponseWriter, r *http.Request) {
	noteRunSource(r, runSource)
	writeJSON(w, http.StatusOK, rt.deps.Sync.Start(r.Context(), runSource))
}

func (rt *Router) syncStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, rt.deps.Sync.Status())
}
