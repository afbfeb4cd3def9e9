package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestGenerateMagicLink(t *testing.T) {
	var gotType, gotEmail string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/generate_link" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer svc_key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req generateLinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotType = req.Type
		gotEmail = req.Email

		json.NewEncoder(w).Encode(map[string]string{
			"action_link": "https://auth.example.com/verify#access_token=at_1&refresh_token=rt_1&type=magiclink",
		})
	}))
	defer server.Close()

	client := New(server.URL, "svc_key", "https://app.example.com", zap.NewNop())

	link, err := client.GenerateMagicLink(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if gotType != "magiclink" || gotEmail != "user@example.com" {
		t.Errorf("request type=%q email=%q", gotType, gotEmail)
	}
	if link == "" {
		t.Fatal("empty link")
	}

	tokens, err := ExtractTokens(link)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if tokens.AccessToken != "at_1" || tokens.RefreshToken != "rt_1" || tokens.Type != "magiclink" {
		t.Errorf("tokens = %+v", tokens)
	}
}

func TestGenerateLink_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"msg": "invalid email"})
	}))
	defer server.Close()

	client := New(server.URL, "svc_key", "", zap.NewNop())

	if _, err := client.GenerateMagicLink(context.Background(), "bad"); err == nil {
		t.Fatal("expected error for 422 response")
	}
}

func TestCreateUser(t *testing.T) {
	var got createUserRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/users" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"u1"}`))
	}))
	defer server.Close()

	client := New(server.URL, "svc_key", "", zap.NewNop())

	if err := client.CreateUser(context.Background(), "new@example.com", "New Member"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if got.Email != "new@example.com" || !got.EmailConfirm {
		t.Errorf("request = %+v", got)
	}
	if got.UserMetadata["full_name"] != "New Member" {
		t.Errorf("metadata = %v", got.UserMetadata)
	}
}

func TestExtractTokens(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		want    TokenSet
		wantErr bool
	}{
		{
			name: "fragment",
			link: "https://auth.example.com/verify#access_token=a&refresh_token=r&type=magiclink",
			want: TokenSet{AccessToken: "a", RefreshToken: "r", Type: "magiclink"},
		},
		{
			name: "query",
			link: "https://auth.example.com/verify?access_token=a&refresh_token=r&type=recovery",
			want: TokenSet{AccessToken: "a", RefreshToken: "r", Type: "recovery"},
		},
		{
			name:    "no tokens",
			link:    "https://auth.example.com/verify",
			wantErr: true,
		},
		{
			name:    "not a url",
			link:    "://bad",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractTokens(tt.link)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("extract failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("tokens = %+v, want %+v", got, tt.want)
			}
		})
	}
}
