package api

import (
	"encoding/json"

	"github.com/google/uuid"
)

type JsonRpcRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type JsonRpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  any             `json:"result"`
	ID      json.RawMessage `json:"id,omitempty"`
}

type JsonRpcError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

type JsonRpcErrorResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Error   JsonRpcError    `json:"error"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Session tokens are injected into params server-side from cookies; clients
// never pass them explicitly.

type AuthParams struct {
	Wallet    string  `json:"wallet"`
	Username  *string `json:"username"`
	Message   string  `json:"message"`
	Signature string  `json:"signature"`
}

type SessionParams struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken *string `json:"refresh_token"`
}

type CreateCanvasParams struct {
	AccessToken  string `json:"access_token"`
	Name         string `json:"name"`
	InitialColor *int16 `json:"initial_color"`
}

type ListCanvasParams struct {
	AccessToken string `json:"access_token"`
}

type GetCanvasParams struct {
	AccessToken string    `json:"access_token"`
	CanvasID    uuid.UUID `json:"canvas_id"`
}

type JoinCanvasParams struct {
	AccessToken string `json:"access_token"`
	InviteCode  string `json:"invite_code"`
}

type CanvasIDParams struct {
	AccessToken string    `json:"access_token"`
	CanvasID    uuid.UUID `json:"canvas_id"`
}

type ConfirmPublishCanvasParams struct {
	AccessToken string    `json:"access_token"`
	CanvasID    uuid.UUID `json:"canvas_id"`
	Signature   string    `json:"signature"`
	CanvasPDA   string    `json:"canvas_pda"`
}

type PlacePixelBidParams struct {
	AccessToken string    `json:"access_token"`
	CanvasID    uuid.UUID `json:"canvas_id"`
	X           int16     `json:"x"`
	Y           int16     `json:"y"`
	Color       int16     `json:"color"`
	BidLamports *int64    `json:"bid_lamports"`
}

type ConfirmPixelBidParams struct {
	AccessToken string    `json:"access_token"`
	CanvasID    uuid.UUID `json:"canvas_id"`
	X           int16     `json:"x"`
	Y           int16     `json:"y"`
	Color       int16     `json:"color"`
	BidLamports *int64    `json:"bid_lamports"`
	Signature   string    `json:"signature"`
}

type CancelPixelBidParams struct {
	AccessToken string    `json:"access_token"`
	CanvasID    uuid.UUID `json:"canvas_id"`
	X           int16     `json:"x"`
	Y           int16     `json:"y"`
}

type PaintPixelParams struct {
	AccessToken string    `json:"access_token"`
	CanvasID    uuid.UUID `json:"canvas_id"`
	X           int16     `json:"x"`
	Y           int16     `json:"y"`
	Color       int16     `json:"color"`
	Signature   string    `json:"signature"`
}

type ConfirmNftMintParams struct {
	AccessToken string    `json:"access_token"`
	CanvasID    uuid.UUID `json:"canvas_id"`
	Signature   string    `json:"signature"`
	MintAddress string    `json:"mint_address"`
}
