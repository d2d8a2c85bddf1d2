package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/waveportal/waveledger/internal/ledger"
	"github.com/waveportal/waveledger/internal/server/handler"
	"github.com/waveportal/waveledger/internal/waves"
)

func setupWaveRouter(t *testing.T) (*gin.Engine, *waves.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc := waves.NewService(ledger.NewMemory(), zap.NewNop())
	h := handler.NewWaveHandler(svc, zap.NewNop())
	v1 := r.Group("/api/v1")
	h.Register(v1)
	return r, svc
}

func TestSubmitWave_201(t *testing.T) {
	router, _ := setupWaveRouter(t)

	body := `{"sender": "alice", "message": "Hello, Linea!"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/waves", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp ledger.Wave
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Index != 0 {
		t.Errorf("first wave index: got %d, want 0", resp.Index)
	}
	if resp.Sender != "alice" || resp.Message != "Hello, Linea!" {
		t.Errorf("echoed wave: got %+v", resp)
	}
	if resp.Timestamp == 0 {
		t.Error("timestamp missing from response")
	}
}

func TestSubmitWave_400_missingSender(t *testing.T) {
	router, _ := setupWaveRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/waves", strings.NewReader(`{"message": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSubmitWave_emptyMessageAccepted(t *testing.T) {
	router, _ := setupWaveRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/waves", strings.NewReader(`{"sender": "alice", "message": ""}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("empty message must be accepted, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListWaves_appendOrder(t *testing.T) {
	router, svc := setupWaveRouter(t)
	ctx := context.Background()
	_, _ = svc.Append(ctx, "alice", "Wave from Alice")
	_, _ = svc.Append(ctx, "bob", "Wave from Bob")
	_, _ = svc.Append(ctx, "alice", "Another wave from Alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/waves", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Waves []ledger.Wave `json:"waves"`
		Count int           `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 3 || len(resp.Waves) != 3 {
		t.Fatalf("expected 3 waves, got count=%d len=%d", resp.Count, len(resp.Waves))
	}
	wantSenders := []string{"alice", "bob", "alice"}
	for i, wave := range resp.Waves {
		if wave.Sender != wantSenders[i] {
			t.Errorf("wave %d sender: got %q, want %q", i, wave.Sender, wantSenders[i])
		}
	}
}

func TestWaveCount(t *testing.T) {
	router, svc := setupWaveRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/waves/count", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]int
	json.Unmarshal(w.Body.Bytes(), &resp) //nolint:errcheck
	if resp["count"] != 0 {
		t.Errorf("empty ledger count: got %d", resp["count"])
	}

	_, _ = svc.Append(context.Background(), "alice", "hi")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/waves/count", nil))
	json.Unmarshal(w.Body.Bytes(), &resp) //nolint:errcheck
	if resp["count"] != 1 {
		t.Errorf("count after append: got %d, want 1", resp["count"])
	}
}

func TestGetWave_200(t *testing.T) {
	router, svc := setupWaveRouter(t)
	_, _ = svc.Append(context.Background(), "alice", "Hello, Linea!")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/waves/0", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetWave_404_outOfRange(t *testing.T) {
	router, svc := setupWaveRouter(t)
	_, _ = svc.Append(context.Background(), "alice", "hi")

	for _, idx := range []string{"1", "-1", "999"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/waves/"+idx, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("GET /waves/%s: expected 404, got %d", idx, w.Code)
		}
	}
}

func TestGetWave_400_invalidIdx(t *testing.T) {
	router, _ := setupWaveRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/waves/abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
