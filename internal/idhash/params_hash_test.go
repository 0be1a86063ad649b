package idhash

import (
	"testing"

	"github.com/mr-tron/base58"

	"microstructure-lab/internal/domain"
)

func TestComputeParamsHash(t *testing.T) {
	p := domain.DefaultParams()

	h1 := ComputeParamsHash(p)
	h2 := ComputeParamsHash(p)

	if len(h1) != 64 {
		t.Errorf("expected 64-char hash, got %d", len(h1))
	}
	if h1 != h2 {
		t.Errorf("hash is not deterministic: %s != %s", h1, h2)
	}
}

func TestComputeParamsHash_FieldSensitivity(t *testing.T) {
	base := domain.DefaultParams()
	baseHash := ComputeParamsHash(base)

	variants := []struct {
		name string
		mod  func(p *domain.Params)
	}{
		{"spread_window", func(p *domain.Params) { p.SpreadWindow++ }},
		{"vol_window", func(p *domain.Params) { p.VolWindow++ }},
		{"depth_window", func(p *domain.Params) { p.DepthWindow++ }},
		{"z_threshold", func(p *domain.Params) { p.ZThreshold += 0.1 }},
		{"depth_factor", func(p *domain.Params) { p.DepthFactor = 0.31 }},
		{"horizon", func(p *domain.Params) { p.Horizon++ }},
	}
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			p := base
			v.mod(&p)
			if ComputeParamsHash(p) == baseHash {
				t.Errorf("changing %s did not change the hash", v.name)
			}
		})
	}
}

func TestComputeWindowsKey(t *testing.T) {
	w := domain.Windows{Spread: 60, Vol: 10, Depth: 600}

	k := ComputeWindowsKey("ds1", w)
	raw, err := base58.Decode(k)
	if err != nil {
		t.Fatalf("key is not base58: %v", err)
	}
	if len(raw) != 16 {
		t.Errorf("expected 16 decoded bytes, got %d", len(raw))
	}
	if k != ComputeWindowsKey("ds1", w) {
		t.Error("key is not deterministic")
	}
	if k == ComputeWindowsKey("ds2", w) {
		t.Error("dataset must change the key")
	}
	if k == ComputeWindowsKey("ds1", domain.Windows{Spread: 60, Vol: 10, Depth: 601}) {
		t.Error("windows must change the key")
	}
}
