package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/waveportal/waveledger/pkg/client"
)

var ctx = context.Background()

func TestSendWave(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/waves" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		if req["sender"] != "alice" || req["message"] != "Hello, Linea!" {
			t.Errorf("unexpected payload: %v", req)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(client.Wave{ //nolint:errcheck
			Index:     0,
			Sender:    req["sender"],
			Message:   req["message"],
			Timestamp: 1700000000,
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	wave, err := c.SendWave(ctx, "alice", "Hello, Linea!")
	if err != nil {
		t.Fatal(err)
	}
	if wave.Index != 0 || wave.Sender != "alice" {
		t.Errorf("got %+v", wave)
	}
}

func TestCountAndWaves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/waves/count":
			json.NewEncoder(w).Encode(map[string]int{"count": 2}) //nolint:errcheck
		case "/api/v1/waves":
			json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
				"waves": []client.Wave{
					{Index: 0, Sender: "alice", Message: "one"},
					{Index: 1, Sender: "bob", Message: "two"},
				},
				"count": 2,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := client.New(srv.URL)

	n, err := c.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count: got %d, want 2", n)
	}

	waves, err := c.Waves(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(waves) != 2 || waves[1].Sender != "bob" {
		t.Errorf("waves: got %+v", waves)
	}
}

func TestWave_outOfRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "wave index out of range"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	_, err := c.Wave(ctx, 42)
	if !errors.Is(err, client.ErrOutOfRange) {
		t.Errorf("got %v, want ErrOutOfRange", err)
	}
}

func TestSendWave_serverError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "failed to append wave"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	if _, err := c.SendWave(ctx, "alice", "hi"); err == nil {
		t.Fatal("expected an error from a 500 response")
	}
}
