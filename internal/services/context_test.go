package services_test

import (
	"context"
	"testing"

	"ferry/internal/services"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := services.WithItemID(context.Background(), 42)
	ctx = services.WithStage(ctx, "import")
	ctx = services.WithAgent(ctx, "qbit")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ItemIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("item id = %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "import" {
		t.Fatalf("stage = %v %v", stage, ok)
	}
	if agent, ok := services.AgentFromContext(ctx); !ok || agent != "qbit" {
		t.Fatalf("agent = %v %v", agent, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("request id = %v %v", rid, ok)
	}
}

func TestBlankValuesAreNotStored(t *testing.T) {
	parent := services.WithAgent(context.Background(), "sab")
	ctx := services.WithAgent(parent, "")
	if agent, _ := services.AgentFromContext(ctx); agent != "sab" {
		t.Fatalf("blank agent overwrote parent value: %q", agent)
	}
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.ItemIDFromContext(context.Background()); ok {
		t.Fatal("expected no item id")
	}
}
