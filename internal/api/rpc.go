package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/pixel-archives/internal/apperr"
	"github.com/rawblock/pixel-archives/internal/auth"
	"github.com/rawblock/pixel-archives/internal/logging"
)

const maxBodySize = 1024 * 1024

// rpcHandler is the single JSON-RPC endpoint: body cap, envelope checks,
// cookie injection, dispatch, and cookie issuance for auth methods.
func (s *Server) rpcHandler(c *gin.Context) {
	log := logging.GetComponentLogger("api")

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize))
	if err != nil {
		msg := "Parse error"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			msg = "Request body too large (max 1MB)"
		}
		s.writeError(c, apperr.InvalidParams(msg), nil)
		return
	}

	var request JsonRpcRequest
	if err := json.Unmarshal(body, &request); err != nil {
		s.writeError(c, apperr.InvalidParams("Parse error"), nil)
		return
	}

	if request.Jsonrpc != "2.0" {
		s.writeError(c, apperr.InvalidParams("Invalid JSON-RPC version"), request.ID)
		return
	}

	params, clientKey := s.injectSessionParams(c, request.Method, request.Params)

	result, err := s.dispatcher.Dispatch(c.Request.Context(), request.Method, params, clientKey)
	if err != nil {
		appErr := apperr.From(err)
		if appErr.Internal != nil {
			log.Error("method failed", "method", request.Method, "error", appErr.Internal)
		}
		s.writeError(c, appErr, request.ID)
		return
	}

	switch request.Method {
	case "auth.login", "auth.register", "auth.refresh":
		// Tokens travel only in cookies; the response body carries the user.
		if authResp, ok := result.(auth.AuthResponse); ok {
			s.setAuthCookies(c, authResp)
			result = map[string]any{"user": authResp.User}
		}
	case "auth.logout":
		s.clearAuthCookies(c)
	}

	c.JSON(http.StatusOK, JsonRpcResponse{Jsonrpc: "2.0", Result: result, ID: request.ID})
}

// injectSessionParams copies the session cookies into the params object and
// derives the rate-limit client key (user id when authenticated, client IP
// otherwise).
func (s *Server) injectSessionParams(c *gin.Context, method string, raw json.RawMessage) (json.RawMessage, string) {
	clientKey := "ip:" + c.ClientIP()

	params := make(map[string]json.RawMessage)
	if len(raw) > 0 {
		// Non-object params simply skip injection; typed decoding will
		// produce the right error downstream.
		_ = json.Unmarshal(raw, &params)
	}

	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		encoded, _ := json.Marshal(token)
		params["access_token"] = encoded

		if claims, err := s.services.Jwt.ValidateToken(token, auth.TokenAccess); err == nil {
			clientKey = "user:" + claims.Subject
		}
	}

	if method == "auth.refresh" || method == "auth.logout" {
		if token, err := c.Cookie("refresh_token"); err == nil && token != "" {
			encoded, _ := json.Marshal(token)
			params["refresh_token"] = encoded
		}
	}

	merged, err := json.Marshal(params)
	if err != nil {
		return raw, clientKey
	}
	return merged, clientKey
}

func (s *Server) writeError(c *gin.Context, err *apperr.Error, id json.RawMessage) {
	// JSON-RPC errors ride on HTTP 200; transport success is orthogonal to
	// method failure.
	c.JSON(http.StatusOK, JsonRpcErrorResponse{
		Jsonrpc: "2.0",
		Error: JsonRpcError{
			Code:    err.Kind.Code(),
			Message: apperr.UserMessage(err),
			Data:    err.Data,
		},
		ID: id,
	})
}

func (s *Server) setAuthCookies(c *gin.Context, resp auth.AuthResponse) {
	secure := s.cfg.Server.SecureCookies()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.TokenAccess.CookieName(), resp.AccessToken,
		int(s.services.Jwt.AccessTTL().Seconds()), "/", "", secure, true)
	c.SetCookie(auth.TokenRefresh.CookieName(), resp.RefreshToken,
		int(s.services.Jwt.RefreshTTL().Seconds()), "/", "", secure, true)
}

func (s *Server) clearAuthCookies(c *gin.Context) {
	secure := s.cfg.Server.SecureCookies()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.TokenAccess.CookieName(), "", -1, "/", "", secure, true)
	c.SetCookie(auth.TokenRefresh.CookieName(), "", -1, "/", "", secure, true)
}
