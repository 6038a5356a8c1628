package models

import "testing"

func TestCanvasState_ValidTransitions(t *testing.T) {
	allowed := map[[2]CanvasState]bool{
		{CanvasDraft, CanvasPublishing}:       true,
		{CanvasPublishing, CanvasPublished}:   true,
		{CanvasPublishing, CanvasDraft}:       true,
		{CanvasPublished, CanvasMintPending}:  true,
		{CanvasMintPending, CanvasPublished}:  true,
		{CanvasMintPending, CanvasMinting}:    true,
		{CanvasMinting, CanvasMinted}:         true,
		{CanvasMinting, CanvasPublished}:      true,
	}

	states := []CanvasState{
		CanvasDraft, CanvasPublishing, CanvasPublished,
		CanvasMintPending, CanvasMinting, CanvasMinted,
	}

	// Every pair not in the allowed table must be rejected, including
	// self-transitions and anything out of Minted.
	for _, from := range states {
		for _, to := range states {
			want := allowed[[2]CanvasState{from, to}]
			if got := from.ValidTransition(to); got != want {
				t.Errorf("ValidTransition(%s -> %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCanvasState_MintedIsTerminal(t *testing.T) {
	for _, to := range []CanvasState{CanvasDraft, CanvasPublishing, CanvasPublished, CanvasMintPending, CanvasMinting, CanvasMinted} {
		if CanvasMinted.ValidTransition(to) {
			t.Errorf("Minted should be terminal, but transition to %s was allowed", to)
		}
	}
}
