package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/pixel-archives/internal/auth"
	"github.com/rawblock/pixel-archives/internal/config"
	"github.com/rawblock/pixel-archives/internal/ratelimit"
	"github.com/rawblock/pixel-archives/internal/ws"
)

func testServer() *Server {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Server.PublicURL = "http://localhost:8080"
	cfg.Server.MaxConcurrentRequests = 8

	jwt := auth.NewJwtService(&config.JwtConfig{
		Secret:         "0123456789abcdef0123456789abcdef",
		AccessTTLSecs:  900,
		RefreshTTLSecs: 3600,
	})

	services := &Services{
		Jwt:      jwt,
		Limiters: &ratelimit.Limiters{},
	}
	return NewServer(cfg, services, ws.NewHandler(ws.NewManager(5), jwt))
}

func postRPC(t *testing.T, router http.Handler, body string) JsonRpcErrorResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("JSON-RPC errors must ride on HTTP 200. Got: %d", w.Code)
	}
	var resp JsonRpcErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Response is not JSON: %v", err)
	}
	return resp
}

func TestRpc_RejectsWrongVersion(t *testing.T) {
	router := testServer().Router()

	resp := postRPC(t, router, `{"jsonrpc":"1.0","method":"canvas.list","params":{},"id":1}`)

	if resp.Error.Code != -32602 {
		t.Errorf("Expected -32602. Got: %d", resp.Error.Code)
	}
	if !strings.Contains(resp.Error.Message, "Invalid JSON-RPC version") {
		t.Errorf("Unexpected message: %q", resp.Error.Message)
	}
}

func TestRpc_RejectsOversizedBody(t *testing.T) {
	router := testServer().Router()

	// Just over the 1 MiB cap.
	padding := strings.Repeat("x", maxBodySize+10)
	body := `{"jsonrpc":"2.0","method":"canvas.list","params":{"pad":"` + padding + `"},"id":1}`

	resp := postRPC(t, router, body)

	if !strings.Contains(resp.Error.Message, "Request body too large (max 1MB)") {
		t.Errorf("Unexpected message: %q", resp.Error.Message)
	}
}

func TestRpc_MethodNotFound(t *testing.T) {
	router := testServer().Router()

	resp := postRPC(t, router, `{"jsonrpc":"2.0","method":"canvas.explode","params":{},"id":1}`)

	if resp.Error.Code != -32601 {
		t.Errorf("Expected -32601. Got: %d", resp.Error.Code)
	}
}

func TestRpc_UnauthenticatedCallRejected(t *testing.T) {
	router := testServer().Router()

	// No access_token cookie: the injected token is empty and validation
	// fails before any service logic runs.
	resp := postRPC(t, router, `{"jsonrpc":"2.0","method":"canvas.list","params":{},"id":7}`)

	if resp.Error.Code != -32020 {
		t.Errorf("Expected Unauthorized (-32020). Got: %d", resp.Error.Code)
	}
}

func TestRpc_ParseErrorOnGarbage(t *testing.T) {
	router := testServer().Router()

	resp := postRPC(t, router, `this is not json`)

	if resp.Error.Code != -32602 || !strings.Contains(resp.Error.Message, "Parse error") {
		t.Errorf("Expected InvalidParams parse error. Got: %d %q", resp.Error.Code, resp.Error.Message)
	}
}

func TestDispatcher_LimiterCategories(t *testing.T) {
	limiters := &ratelimit.Limiters{
		Auth:   ratelimit.NewWithWindow(nil, 10, "auth"),
		Pixel:  ratelimit.NewWithWindow(nil, 60, "pixel"),
		Canvas: ratelimit.NewWithWindow(nil, 20, "canvas"),
		Solana: ratelimit.NewWithWindow(nil, 10, "solana"),
	}
	d := NewDispatcher(&Services{Limiters: limiters})

	cases := map[string]*ratelimit.Limiter{
		"auth.login":              limiters.Auth,
		"auth.register":           limiters.Auth,
		"auth.refresh":            limiters.Auth,
		"auth.logout":             nil,
		"pixel.place":             limiters.Pixel,
		"pixel.paint":             limiters.Pixel,
		"pixel.confirm":           nil,
		"pixel.cancel":            nil,
		"canvas.create":           limiters.Canvas,
		"canvas.join":             limiters.Canvas,
		"canvas.delete":           limiters.Canvas,
		"canvas.get":              nil,
		"canvas.publish":          limiters.Solana,
		"canvas.confirmPublish":   limiters.Solana,
		"canvas.cancelPublish":    nil,
		"nft.announceMint":        limiters.Solana,
		"nft.mint":                limiters.Solana,
		"nft.confirmMint":         limiters.Solana,
		"nft.prepareMetadata":     limiters.Solana,
		"nft.cancelMint":          nil,
		"nft.cancelMintCountdown": nil,
	}
	for method, want := range cases {
		if got := d.limiterFor(method); got != want {
			t.Errorf("limiterFor(%s) routed to the wrong category", method)
		}
	}
}
