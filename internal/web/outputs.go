package web

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/ehdc-splitter/internal/export"
)

// OutputsHandler serves the JSON outputs found in Dir
type OutputsHandler struct {
	Dir string
}

// OutputsResponse lists the available outputs
type OutputsResponse struct {
	Outputs []string `json:"outputs"`
}

// List returns the names of all outputs, sorted
func (h *OutputsHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.Dir)
	if err != nil && !os.IsNotExist(err) {
		http.Error(w, "Cannot read output directory", http.StatusInternalServerError)
		return
	}

	names := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != export.Ext {
			continue
		}
		names = append(names, strings.TrimSuffix(name, export.Ext))
	}
	sort.Strings(names)

	writeJSON(w, OutputsResponse{Outputs: names})
}

// Get returns one output as written
func (h *OutputsHandler) Get(w http.ResponseWriter, r *http.Request) {
	data, ok := h.read(w, mux.Vars(r)["name"])
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// GetRecord returns a single record of an output
func (h *OutputsHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data, ok := h.read(w, vars["name"])
	if !ok {
		return
	}

	var docs map[string]json.RawMessage
	if err := json.Unmarshal(data, &docs); err != nil {
		http.Error(w, "Output is not valid JSON", http.StatusInternalServerError)
		return
	}
	doc, found := docs[vars["id"]]
	if !found {
		http.Error(w, "Record not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc)
}

// read loads the named output, writing the error response itself on failure
func (h *OutputsHandler) read(w http.ResponseWriter, name string) ([]byte, bool) {
	if err := export.ValidateName(name); err != nil {
		http.Error(w, "Invalid output name", http.StatusBadRequest)
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(h.Dir, name+export.Ext))
	if os.IsNotExist(err) {
		http.Error(w, "Output not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		http.Error(w, "Cannot read output", http.StatusInternalServerError)
		return nil, false
	}
	return data, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Encoding error", http.StatusInternalServerError)
	}
}
