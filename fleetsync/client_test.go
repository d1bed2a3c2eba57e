package fleetsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (Fetcher, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("FIREBASE_DB_URL", srv.URL)
	t.Setenv("FIREBASE_DB_AUTH", "secret-token")
	t.Setenv("FLEET_SYNC_RATE_LIMIT_PER_MIN", "600000")
	client, err := NewRTDBClient()
	if err != nil {
		t.Fatalf("NewRTDBClient: %v", err)
	}
	return client, srv
}

func TestClientGetObject(t *testing.T) {
	var gotPath, gotAuth string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.URL.Query().Get("auth")
		w.Write([]byte(`{"-Na1":{"name":"Filter"},"-Na2":{"name":"Belt"}}`))
	})

	docs, err := client.Get(context.Background(), "CompaniesData/wevois/Parts")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotPath != "/CompaniesData/wevois/Parts.json" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotAuth != "secret-token" {
		t.Errorf("auth param = %q", gotAuth)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs; want 2", len(docs))
	}
	if _, ok := docs["-Na1"]; !ok {
		t.Error("missing doc -Na1")
	}
}

func TestClientGetNullBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	})
	docs, err := client.Get(context.Background(), "CompaniesData/wevois/Parts")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if docs != nil {
		t.Errorf("got %d docs; want nil", len(docs))
	}
}

func TestClientGetArrayReKeyedByIndex(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[null,{"name":"one"},{"name":"two"}]`))
	})
	docs, err := client.Get(context.Background(), "some/path")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs; want 2 (null slot dropped)", len(docs))
	}
	var rec struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(docs["1"], &rec); err != nil || rec.Name != "one" {
		t.Errorf("docs[\"1\"] = %s; want name=one", docs["1"])
	}
	if _, ok := docs["0"]; ok {
		t.Error("null array slot should be dropped")
	}
}

func TestClientGetErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Permission denied"}`, http.StatusUnauthorized)
	})
	if _, err := client.Get(context.Background(), "some/path"); err == nil {
		t.Fatal("expected an error for a 401 response")
	}
}

func TestClientRequiresBaseURL(t *testing.T) {
	t.Setenv("FIREBASE_DB_URL", "")
	if _, err := NewRTDBClient(); err == nil {
		t.Fatal("expected an error when FIREBASE_DB_URL is empty")
	}
}
