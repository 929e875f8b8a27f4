package config

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.MaxOrderQuantity != 10000 {
		t.Errorf("expected default max quantity 10000, got %d", cfg.MaxOrderQuantity)
	}
	if !cfg.MinMarketCap.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected default floor 10, got %s", cfg.MinMarketCap)
	}
	if !cfg.DefaultSharePrice.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected default price 20, got %s", cfg.DefaultSharePrice)
	}
	if !cfg.TransferRate.Equal(decimal.NewFromFloat(0.10)) {
		t.Errorf("expected default rate 0.10, got %s", cfg.TransferRate)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TRANSFER_RATE", "0.25")
	t.Setenv("MIN_MARKET_CAP", "50")
	t.Setenv("MAX_ORDER_QUANTITY", "500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cfg.TransferRate.Equal(decimal.NewFromFloat(0.25)) {
		t.Errorf("expected rate 0.25, got %s", cfg.TransferRate)
	}
	if !cfg.MinMarketCap.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected floor 50, got %s", cfg.MinMarketCap)
	}
	if cfg.MaxOrderQuantity != 500 {
		t.Errorf("expected max quantity 500, got %d", cfg.MaxOrderQuantity)
	}
}

func TestLoad_RejectsBadRate(t *testing.T) {
	for _, rate := range []string{"-0.1", "1.5", "abc"} {
		t.Setenv("TRANSFER_RATE", rate)
		if _, err := Load(); err == nil {
			t.Errorf("TRANSFER_RATE=%s should be rejected", rate)
		}
	}
}

func TestLoad_RejectsNegativeFloor(t *testing.T) {
	t.Setenv("MIN_MARKET_CAP", "-1")
	if _, err := Load(); err == nil {
		t.Error("negative MIN_MARKET_CAP should be rejected")
	}
}
