package config

import "testing"

func TestDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DispatchRadiusKm != 2 {
		t.Fatalf("radius = %v, want 2", cfg.DispatchRadiusKm)
	}
	if cfg.CodeDigits != 6 {
		t.Fatalf("code digits = %d, want 6", cfg.CodeDigits)
	}
	if cfg.RedisGeoKey != "operators_geo" || cfg.KafkaTopic != "operator-locations" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestOverrides(t *testing.T) {
	t.Setenv("DISPATCH_RADIUS_KM", "5.5")
	t.Setenv("RIDE_CODE_DIGITS", "8")
	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092,")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DispatchRadiusKm != 5.5 || cfg.CodeDigits != 8 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b2:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
}

func TestInvalidValuesRejected(t *testing.T) {
	t.Setenv("DISPATCH_RADIUS_KM", "-1")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("negative radius must fail validation")
	}
}

func TestBadNumberReported(t *testing.T) {
	t.Setenv("RIDE_CODE_DIGITS", "six")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("unparseable int must be reported")
	}
}
