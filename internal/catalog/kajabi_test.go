package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/beaconcoach/beacon/internal/circuitbreaker"
)

func newKajabiTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("grant_type") != "client_credentials" ||
			r.PostForm.Get("client_id") != "cid" ||
			r.PostForm.Get("client_secret") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok_abc",
			"expires_in":   3600,
		})
	})

	mux.HandleFunc("/v1/products", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok_abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"products": []map[string]any{
				{"id": "p1", "title": "Course One", "offerings": []map[string]any{{"id": "o1"}}},
			},
		})
	})

	mux.HandleFunc("/v1/contacts", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok_abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"contacts": []map[string]any{
				{"id": "c1", "email": "a@example.com", "tags": []string{"mastermind"}},
			},
		})
	})

	return httptest.NewServer(mux)
}

func newTestKajabiClient(baseURL string) *KajabiClient {
	logger := zap.NewNop()
	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig("kajabi"), logger)
	return NewKajabiClient(baseURL, "cid", "secret", breaker, logger)
}

func TestKajabiClient_Products(t *testing.T) {
	server := newKajabiTestServer(t)
	defer server.Close()

	client := newTestKajabiClient(server.URL)

	products, err := client.Products(context.Background())
	if err != nil {
		t.Fatalf("products failed: %v", err)
	}
	if len(products) != 1 || products[0].ID != "p1" {
		t.Fatalf("products = %+v", products)
	}
	if len(products[0].Offerings) != 1 || products[0].Offerings[0].ID != "o1" {
		t.Errorf("offerings = %+v", products[0].Offerings)
	}
}

func TestKajabiClient_Contacts(t *testing.T) {
	server := newKajabiTestServer(t)
	defer server.Close()

	client := newTestKajabiClient(server.URL)

	contacts, err := client.Contacts(context.Background())
	if err != nil {
		t.Fatalf("contacts failed: %v", err)
	}
	if len(contacts) != 1 || contacts[0].Email != "a@example.com" {
		t.Fatalf("contacts = %+v", contacts)
	}
}

func TestKajabiClient_TokenCached(t *testing.T) {
	var grants int
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		grants++
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok_abc", "expires_in": 3600})
	})
	mux.HandleFunc("/v1/products", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"products": []map[string]any{}})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestKajabiClient(server.URL)

	for i := 0; i < 3; i++ {
		if _, err := client.Products(context.Background()); err != nil {
			t.Fatalf("products failed: %v", err)
		}
	}
	if grants != 1 {
		t.Errorf("token granted %d times, want 1", grants)
	}
}

func TestKajabiClient_BadCredentials(t *testing.T) {
	server := newKajabiTestServer(t)
	defer server.Close()

	logger := zap.NewNop()
	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig("kajabi"), logger)
	client := NewKajabiClient(server.URL, "cid", "wrong", breaker, logger)

	if _, err := client.Products(context.Background()); err == nil {
		t.Fatal("expected error with bad client secret")
	}
}

func TestKajabiClient_CircuitOpenRejectsImmediately(t *testing.T) {
	server := newKajabiTestServer(t)
	defer server.Close()

	logger := zap.NewNop()
	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "kajabi", MaxFailures: 1}, logger)
	breaker.RecordFailure()

	client := NewKajabiClient(server.URL, "cid", "secret", breaker, logger)

	_, err := client.Products(context.Background())
	if err != circuitbreaker.ErrCircuitOpen {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}
