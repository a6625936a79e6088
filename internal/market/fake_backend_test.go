package market

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// fakeBackend is an in-memory stand-in for the rows and storage services.
type fakeBackend struct {
	t *testing.T

	mu            sync.Mutex
	books         []map[string]any
	orders        []map[string]any
	notifications []map[string]any
	objects       map[string]string
	removed       []string

	failBookInsert     bool
	failNotifications  int // number of notification inserts to reject
	notificationPosts  int
	orderPatches       int
	failObjectRemoval  bool
	failOrderSelection bool
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	f := &fakeBackend{t: t, objects: map[string]string{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.HasPrefix(r.URL.Path, "/storage/v1/object/"):
		f.serveStorage(w, r)
	case r.URL.Path == "/rest/v1/books":
		f.serveTable(w, r, &f.books, f.failBookInsert)
	case r.URL.Path == "/rest/v1/transactions":
		if r.Method == http.MethodPatch {
			f.orderPatches++
		}
		if r.Method == http.MethodGet && f.failOrderSelection {
			writeErr(w, http.StatusInternalServerError, "orders unavailable")
			return
		}
		f.serveTable(w, r, &f.orders, false)
	case r.URL.Path == "/rest/v1/notifications":
		fail := false
		if r.Method == http.MethodPost {
			f.notificationPosts++
			if f.failNotifications > 0 {
				f.failNotifications--
				fail = true
			}
		}
		f.serveTable(w, r, &f.notifications, fail)
	default:
		http.NotFound(w, r)
	}
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"message": msg}) //nolint:errcheck
}

// matches applies the eq./is. filters of a rows query.
func matches(row map[string]any, q map[string][]string) bool {
	for k, vs := range q {
		if k == "select" || k == "order" || k == "or" {
			continue
		}
		v := vs[0]
		switch {
		case strings.HasPrefix(v, "eq."):
			if toString(row[k]) != strings.TrimPrefix(v, "eq.") {
				return false
			}
		case v == "is.false":
			if b, _ := row[k].(bool); b {
				return false
			}
		}
	}
	if or := q["or"]; len(or) > 0 {
		inner := strings.TrimSuffix(strings.TrimPrefix(or[0], "("), ")")
		ok := false
		for _, cond := range strings.Split(inner, ",") {
			parts := strings.SplitN(cond, ".eq.", 2)
			if len(parts) == 2 && toString(row[parts[0]]) == parts[1] {
				ok = true
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func (f *fakeBackend) serveTable(w http.ResponseWriter, r *http.Request, rows *[]map[string]any, fail bool) {
	q := r.URL.Query()
	switch r.Method {
	case http.MethodGet:
		out := []map[string]any{}
		for _, row := range *rows {
			if matches(row, q) {
				out = append(out, row)
			}
		}
		json.NewEncoder(w).Encode(out) //nolint:errcheck
	case http.MethodPost:
		if fail {
			writeErr(w, http.StatusServiceUnavailable, "insert rejected")
			return
		}
		var row map[string]any
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		row["id"] = uuid.NewString()
		*rows = append(*rows, row)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]map[string]any{row}) //nolint:errcheck
	case http.MethodPatch:
		var patch map[string]any
		json.NewDecoder(r.Body).Decode(&patch) //nolint:errcheck
		out := []map[string]any{}
		for _, row := range *rows {
			if matches(row, q) {
				for k, v := range patch {
					row[k] = v
				}
				out = append(out, row)
			}
		}
		json.NewEncoder(w).Encode(out) //nolint:errcheck
	case http.MethodDelete:
		kept := (*rows)[:0]
		for _, row := range *rows {
			if !matches(row, q) {
				kept = append(kept, row)
			}
		}
		*rows = kept
		w.WriteHeader(http.StatusNoContent)
	}
}

func (f *fakeBackend) serveStorage(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/storage/v1/object/")
	switch r.Method {
	case http.MethodPost:
		data, _ := io.ReadAll(r.Body) //nolint:errcheck
		f.objects[key] = string(data)
		json.NewEncoder(w).Encode(map[string]string{"Key": key}) //nolint:errcheck
	case http.MethodDelete:
		if f.failObjectRemoval {
			writeErr(w, http.StatusInternalServerError, "storage down")
			return
		}
		var body struct {
			Prefixes []string `json:"prefixes"`
		}
		json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
		for _, p := range body.Prefixes {
			delete(f.objects, key+"/"+p)
			f.removed = append(f.removed, p)
		}
		w.Write([]byte(`[]`)) //nolint:errcheck
	}
}

func (f *fakeBackend) counts() (books, orders, notifications, objects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.books), len(f.orders), len(f.notifications), len(f.objects)
}
