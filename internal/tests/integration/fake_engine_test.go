package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

type fakeTransform struct {
	state   string
	reason  string
	started bool
}

// fakeElastic is a small in-memory stand-in for the Elasticsearch REST API:
// indices with mappings, ILM policies, transforms, stats and cardinality.
type fakeElastic struct {
	mu          sync.Mutex
	indices     map[string]map[string]string // index -> field -> type
	policies    map[string]bool
	transforms  map[string]*fakeTransform
	docCount    int64
	storeBytes  int64
	cardinality map[string]int64
	failPut     bool
}

func newFakeElastic(t *testing.T) (*fakeElastic, string) {
	t.Helper()
	es := &fakeElastic{
		indices: map[string]map[string]string{
			"logs-app": {"@timestamp": "date", "service": "keyword", "status": "keyword", "duration_ms": "long", "message": "text"},
		},
		policies:    make(map[string]bool),
		transforms:  make(map[string]*fakeTransform),
		docCount:    5_000_000,
		storeBytes:  5 << 30,
		cardinality: map[string]int64{"service": 12, "status": 5},
	}

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeES(w, http.StatusOK, map[string]interface{}{"version": map[string]string{"number": "8.13.0"}})
	})
	r.Get("/_cat/indices", es.catIndices)
	r.Route("/_ilm/policy/{name}", func(r chi.Router) {
		r.Get("/", es.getPolicy)
		r.Put("/", es.putPolicy)
	})
	r.Route("/_transform/{id}", func(r chi.Router) {
		r.Get("/", es.getTransform)
		r.Put("/", es.putTransform)
		r.Delete("/", es.deleteTransform)
		r.Post("/_start", es.startTransform)
		r.Post("/_stop", es.stopTransform)
		r.Get("/_stats", es.transformStats)
	})
	r.Route("/{index}", func(r chi.Router) {
		r.Head("/", es.indexExists)
		r.Put("/", es.createIndex)
		r.Delete("/", es.deleteIndex)
		r.Get("/_mapping", es.mapping)
		r.Get("/_stats", es.stats)
		r.Post("/_search", es.search)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return es, srv.URL
}

func writeES(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func esError(w http.ResponseWriter, status int, typ, reason string) {
	writeES(w, status, map[string]interface{}{
		"error":  map[string]string{"type": typ, "reason": reason},
		"status": status,
	})
}

func (es *fakeElastic) matching(pattern string) []string {
	var out []string
	prefix, wildcard := strings.CutSuffix(pattern, "*")
	for name := range es.indices {
		if name == pattern || (wildcard && strings.HasPrefix(name, prefix)) {
			out = append(out, name)
		}
	}
	return out
}

func (es *fakeElastic) catIndices(w http.ResponseWriter, r *http.Request) {
	es.mu.Lock()
	defer es.mu.Unlock()
	rows := []map[string]string{}
	for name := range es.indices {
		rows = append(rows, map[string]string{"index": name, "docs.count": "100", "store.size": "2048"})
	}
	writeES(w, http.StatusOK, rows)
}

func (es *fakeElastic) getPolicy(w http.ResponseWriter, r *http.Request) {
	es.mu.Lock()
	defer es.mu.Unlock()
	name := chi.URLParam(r, "name")
	if !es.policies[name] {
		esError(w, http.StatusNotFound, "resource_not_found_exception", "policy "+name+" not found")
		return
	}
	writeES(w, http.StatusOK, map[string]interface{}{name: map[string]interface{}{"version": 1}})
}

func (es *fakeElastic) putPolicy(w http.ResponseWriter, r *http.Request) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.policies[chi.URLParam(r, "name")] = true
	writeES(w, http.StatusOK, map[string]bool{"acknowledged": true})
}

func (es *fakeElastic) getTransform(w http.ResponseWriter, r *http.Request) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if _, ok := es.transforms[chi.URLParam(r, "id")]; !ok {
		esError(w, http.StatusNotFound, "resource_not_found_exception", "transform not found")
		return
	}
	writeES(w, http.StatusOK, map[string]int{"count": 1})
}

func (es *fakeElastic) putTransform(w http.ResponseWriter, r *http.Request) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.failPut {
		esError(w, http.StatusBadRequest, "status_exception", "source index has no mapping for field")
		return
	}
	id := chi.URLParam(r, "id")
	if _, ok := es.transforms[id]; ok {
		esError(w, http.StatusConflict, "resource_already_exists_exception", "transform exists")
		return
	}
	es.transforms[id] = &fakeTransform{state: "stopped"}
	writeES(w, http.StatusOK, map[string]bool{"acknowledged": true})
}

func (es *fakeElastic) deleteTransform(w http.ResponseWriter, r *http.Request) {
	es.mu.Lock()
	defer es.mu.Unlock()
	id := chi.URLParam(r, "id")
	if _, ok := es.transforms[id]; !ok {
		esError(w, http.StatusNotFound, "resource_not_found_exception", "transform not found")
		return
	}
	delete(es.transforms, id)
	writeES(w, http.StatusOK, map[string]bool{"acknowledged": true})
}

func (es *fakeElastic) startTransform(w http.ResponseWriter, r *http.Request) {
	es.mu.Lock()
	defer es.mu.Unlock()
	tr, ok := es.transforms[chi.URLParam(r, "id")]
	if !ok {
		esError(w, http.StatusNotFound, "resource_not_found_exception", "transform not found")
		return
	}
	tr.state, tr.started = "started", true
	writeES(w, http.StatusOK, map[string]bool{"acknowledged": true})
}

func (es *fakeElastic) stopTransform(w http.ResponseWriter, r *http.Request) {
	es.mu.Lock()
	defer es.mu.Unlock()
	tr, ok := es.transforms[chi.URLParam(r, "id")]
	if !ok {
		esError(w, http.StatusNotFound, "resource_not_found_exception", "transform not found")
		return
	}
	tr.state = "stopped"
	writeES(w, http.StatusOK, map[string]bool{"acknowledged": true})
}

func (es *fakeElastic) transformStats(w http.ResponseWriter, r *http.Request) {
	es.mu.Lock()
	defer es.mu.Unlock()
	id := chi.URLParam(r, "id")
	tr, ok := es.transforms[id]
	if !ok {
		esError(w, http.StatusNotFound, "resource_not_found_exception", "transform not found")
		return
	}
	writeES(w, http.StatusOK, map[string]interface{}{
		"count": 1,
		"transforms": []map[string]interface{}{{
			"id":     id,
			"state":  tr.state,
			"reason": tr.reason,
			"stats":  map[string]int64{"documents_processed": 1000, "documents_indexed": 40},
		}},
	})
}

func (es *fakeElastic) indexExists(w http.ResponseWriter, r *http.Request) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if len(es.matching(chi.URLParam(r, "index"))) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (es *fakeElastic) createIndex(w http.ResponseWriter, r *http.Request) {
	es.mu.Lock()
	defer es.mu.Unlock()
	index := chi.URLParam(r, "index")
	if _, ok := es.indices[index]; ok {
		esError(w, http.StatusBadRequest, "resource_already_exists_exception", "index exists")
		return
	}
	es.indices[index] = map[string]string{}
	writeES(w, http.StatusOK, map[string]bool{"acknowledged": true})
}

func (es *fakeElastic) deleteIndex(w http.ResponseWriter, r *http.Request) {
	es.mu.Lock()
	defer es.mu.Unlock()
	index := chi.URLParam(r, "index")
	if _, ok := es.indices[index]; !ok {
		esError(w, http.StatusNotFound, "index_not_found_exception", "no such index")
		return
	}
	delete(es.indices, index)
	writeES(w, http.StatusOK, map[string]bool{"acknowledged": true})
}

func (es *fakeElastic) mapping(w http.ResponseWriter, r *http.Request) {
	es.mu.Lock()
	defer es.mu.Unlock()
	names := es.matching(chi.URLParam(r, "index"))
	if len(names) == 0 {
		esError(w, http.StatusNotFound, "index_not_found_exception", "no such index")
		return
	}
	out := map[string]interface{}{}
	for _, name := range names {
		props := map[string]interface{}{}
		for field, typ := range es.indices[name] {
			props[field] = map[string]string{"type": typ}
		}
		out[name] = map[string]interface{}{"mappings": map[string]interface{}{"properties": props}}
	}
	writeES(w, http.StatusOK, out)
}

func (es *fakeElastic) stats(w http.ResponseWriter, r *http.Request) {
	es.mu.Lock()
	defer es.mu.Unlock()
	writeES(w, http.StatusOK, map[string]interface{}{
		"_all": map[string]interface{}{
			"total": map[string]interface{}{
				"docs":  map[string]int64{"count": es.docCount},
				"store": map[string]int64{"size_in_bytes": es.storeBytes},
			},
		},
	})
}

func (es *fakeElastic) search(w http.ResponseWriter, r *http.Request) {
	es.mu.Lock()
	defer es.mu.Unlock()

	var body struct {
		Aggs struct {
			Cardinality struct {
				Cardinality struct {
					Field string `json:"field"`
				} `json:"cardinality"`
			} `json:"cardinality"`
		} `json:"aggs"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	field := body.Aggs.Cardinality.Cardinality.Field
	card, ok := es.cardinality[field]
	if !ok {
		card = 1_000_000
	}
	writeES(w, http.StatusOK, map[string]interface{}{
		"hits":         map[string]interface{}{"hits": []interface{}{}},
		"aggregations": map[string]interface{}{"cardinality": map[string]int64{"value": card}},
	})
}

func (es *fakeElastic) transform(id string) (fakeTransform, bool) {
	es.mu.Lock()
	defer es.mu.Unlock()
	tr, ok := es.transforms[id]
	if !ok {
		return fakeTransform{}, false
	}
	return *tr, true
}

func (es *fakeElastic) hasIndex(name string) bool {
	es.mu.Lock()
	defer es.mu.Unlock()
	_, ok := es.indices[name]
	return ok
}

func (es *fakeElastic) setState(id, state, reason string) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if tr, ok := es.transforms[id]; ok {
		tr.state, tr.reason = state, reason
	}
}

func (es *fakeElastic) hasPolicy(name string) bool {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.policies[name]
}
