// Package playground provides HTTP handlers for override management.
//
// This file handles the /_specmock/overrides endpoints for listing, adding,
// replacing, deleting, and saving overrides, plus the request history,
// generate and render endpoints used to explore the document.
package playground

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const (
	// defaultRequestsLimit is the number of journal entries listed when the
	// request does not say
	defaultRequestsLimit = 50
	// maxRequestsLimit caps ?limit= on the request history
	maxRequestsLimit = 1000
)

// readJSONBody decodes a bounded JSON request body into v. It writes the
// error response itself and returns false on failure.
func readJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestSize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusRequestEntityTooLarge, "Failed to read request body: "+err.Error())
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// HandleOverridesList returns every override
func HandleOverridesList(store *OverrideStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overrides := store.List()
		WriteJSONSafe(w, http.StatusOK, map[string]interface{}{
			"overrides": overrides,
			"count":     len(overrides),
		})
	}
}

// HandleOverrideCreate adds one override, replacing any override for the same
// method and path
func HandleOverrideCreate(store *OverrideStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var override Override
		if !readJSONBody(w, r, &override) {
			return
		}

		stored, err := store.Add(override)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid override: "+err.Error())
			return
		}
		WriteJSONSafe(w, http.StatusCreated, stored)
	}
}

// HandleOverridesReplace replaces the whole override set. The body is either a
// list of overrides or a saved overrides file. Entries are validated before
// anything is replaced, so a bad import leaves the current set untouched.
func HandleOverridesReplace(store *OverrideStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		if !readJSONBody(w, r, &raw) {
			return
		}

		var overrides []Override
		if err := json.Unmarshal(raw, &overrides); err != nil {
			var export OverridesExport
			if err := json.Unmarshal(raw, &export); err != nil {
				WriteError(w, http.StatusBadRequest, "Body must be a list of overrides or a saved overrides file")
				return
			}
			overrides = export.Overrides
		}

		for i := range overrides {
			check := overrides[i]
			if err := check.normalize(); err != nil {
				WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid override at index %d: %v", i, err))
				return
			}
		}
		store.Replace(overrides)

		WriteJSONSafe(w, http.StatusOK, map[string]interface{}{
			"status": "Overrides replaced",
			"count":  store.Count(),
		})
	}
}

// HandleOverrideDelete deletes the override named by the {id} URL parameter
func HandleOverrideDelete(store *OverrideStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !store.Remove(id) {
			WriteError(w, http.StatusNotFound, "No override with id "+id)
			return
		}
		WriteJSONSafe(w, http.StatusOK, map[string]interface{}{
			"status": "Override deleted",
			"id":     id,
		})
	}
}

// HandleOverridesSave writes the overrides to the persistence file now
func HandleOverridesSave(persistence *OverridePersistence) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if persistence == nil {
			WriteError(w, http.StatusBadRequest, "Persistence is disabled. Set persistence.enabled in the configuration.")
			return
		}
		if err := persistence.SaveWithRetry(); err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to save overrides: "+err.Error())
			return
		}
		WriteJSONSafe(w, http.StatusOK, map[string]interface{}{
			"status":    "Overrides saved successfully",
			"file_path": persistence.FilePath(),
			"saved_at":  persistence.LastSave(),
		})
	}
}

// HandleRequestsList returns recent requests, newest first. Supports ?limit=N.
func HandleRequestsList(journal Journal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRequestsLimit
		if value := r.URL.Query().Get("limit"); value != "" {
			parsed, err := strconv.Atoi(value)
			if err != nil || parsed <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = parsed
		}
		if limit > maxRequestsLimit {
			limit = maxRequestsLimit
		}

		entries, err := journal.List(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to list requests: "+err.Error())
			return
		}
		WriteJSONSafe(w, http.StatusOK, map[string]interface{}{
			"requests": entries,
			"count":    len(entries),
		})
	}
}

// HandleGenerate generates one instance of a schema, a document reference, or
// an endpoint's response
func HandleGenerate(server *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		if !readJSONBody(w, r, &req) {
			return
		}

		value, err := Generate(server.Document(), server.Generator(), server.Interpreter(), req)
		switch {
		case errors.Is(err, ErrInvalidGenerateRequest):
			WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrTargetNotFound):
			WriteError(w, http.StatusNotFound, err.Error())
		case err != nil:
			WriteError(w, http.StatusInternalServerError, err.Error())
		default:
			WriteJSONSafe(w, http.StatusOK, map[string]interface{}{"value": value})
		}
	}
}

// HandleRender expands every placeholder in the posted JSON value and returns
// the result
func HandleRender(server *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var value interface{}
		if !readJSONBody(w, r, &value) {
			return
		}
		WriteJSONSafe(w, http.StatusOK, server.Interpreter().Process(value))
	}
}
