package mock

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestProvider_Deterministic(t *testing.T) {
	t.Parallel()

	p := &Provider{Dims: 6}
	ctx := context.Background()
	a1, _ := p.Embed(ctx, "아기가 울어요")
	a2, _ := p.Embed(ctx, "아기가 울어요")
	b, _ := p.Embed(ctx, "조용해요")

	if len(a1) != 6 {
		t.Fatalf("len = %d, want 6", len(a1))
	}
	if !reflect.DeepEqual(a1, a2) {
		t.Errorf("same text embedded differently: %v vs %v", a1, a2)
	}
	if reflect.DeepEqual(a1, b) {
		t.Errorf("different texts embedded equally: %v", a1)
	}
	if p.CallCount() != 3 || p.Texts[2] != "조용해요" {
		t.Errorf("Texts = %v", p.Texts)
	}
}

func TestProvider_FixedVectorAndErr(t *testing.T) {
	t.Parallel()

	p := &Provider{Dims: 2, Vector: []float32{1, 0}}
	v, err := p.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	v[0] = 9
	if p.Vector[0] != 1 {
		t.Error("returned vector aliases Vector")
	}
	if p.ModelID() != "mock-embed" {
		t.Errorf("ModelID = %q", p.ModelID())
	}

	boom := errors.New("boom")
	p.Err = boom
	if _, err := p.Embed(context.Background(), "x"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}
