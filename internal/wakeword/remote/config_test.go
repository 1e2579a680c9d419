package remote

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.KeepaliveTime != DefaultKeepaliveTime {
		t.Errorf("KeepaliveTime = %v, want %v", cfg.KeepaliveTime, DefaultKeepaliveTime)
	}
	if cfg.CallTimeout != DefaultCallTimeout {
		t.Errorf("CallTimeout = %v, want %v", cfg.CallTimeout, DefaultCallTimeout)
	}
	if cfg.BreakerConfig.Threshold == 0 {
		t.Error("BreakerConfig should not be zero-valued")
	}
}
