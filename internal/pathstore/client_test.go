package pathstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_PutGetDelete(t *testing.T) {
	var gotAuth, gotBody string
	stored := map[string]json.RawMessage{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		key := strings.TrimPrefix(r.URL.Path, "/kv/")
		switch r.Method {
		case http.MethodPut:
			var req struct {
				Value  json.RawMessage `json:"value"`
				Source string          `json:"source"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			gotBody = req.Source
			stored[key] = req.Value
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			v, ok := stored[key]
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(Node{Key: key, Value: v})
		case http.MethodDelete:
			if _, ok := stored[key]; !ok {
				http.NotFound(w, r)
				return
			}
			delete(stored, key)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "key-1")
	defer c.Close()
	ctx := context.Background()

	if err := c.PutNode(ctx, "checkpoints/abc", NodeRequest{Value: map[string]int{"n": 1}, Source: "test"}); err != nil {
		t.Fatalf("PutNode: %v", err)
	}
	if gotAuth != "Bearer key-1" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotBody != "test" {
		t.Errorf("expected source in body, got %q", gotBody)
	}

	node, err := c.GetNode(ctx, "checkpoints/abc")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if node == nil || string(node.Value) != `{"n":1}` {
		t.Fatalf("unexpected node %+v", node)
	}

	if err := c.DeleteNode(ctx, "checkpoints/abc"); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	if err := c.DeleteNode(ctx, "checkpoints/abc"); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}
	node, err = c.GetNode(ctx, "checkpoints/abc")
	if err != nil || node != nil {
		t.Errorf("expected (nil, nil) for missing key, got %v, %v", node, err)
	}
}

func TestClient_ListChildren(t *testing.T) {
	var gotPath, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLimit = r.URL.Query().Get("limit")
		json.NewEncoder(w).Encode(map[string]any{
			"nodes": []map[string]any{
				{"key_path": "checkpoints/a", "value": map[string]string{"x": "1"}},
				{"key_path": "checkpoints/b", "value": "plain"},
			},
		})
	}))
	defer srv.Close()

	nodes, err := NewClient(srv.URL, "").ListChildren(context.Background(), "checkpoints", 50)
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if gotPath != "/kv/checkpoints/*" || gotLimit != "50" {
		t.Errorf("unexpected request path=%q limit=%q", gotPath, gotLimit)
	}
	if len(nodes) != 2 || nodes[1].Key != "checkpoints/b" || string(nodes[1].Value) != `"plain"` {
		t.Errorf("unexpected nodes %+v", nodes)
	}
}

func TestClient_NoAuthHeaderWithoutKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "").GetNode(context.Background(), "k"); err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("expected no auth header, got %q", gotAuth)
	}
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").PutNode(context.Background(), "k", NodeRequest{Value: 1})
	if err == nil || !strings.Contains(err.Error(), "status 500") || !strings.Contains(err.Error(), "backend down") {
		t.Errorf("expected status error with body, got %v", err)
	}
}
