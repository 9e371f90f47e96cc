package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != 8080 {
		t.Fatalf("ожидали порт 8080 по умолчанию, получили %d", cfg.Port)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Fatalf("ожидали адрес метрик :9090 по умолчанию, получили %q", cfg.MetricsAddr)
	}
	if cfg.Queues.Notifications != "notification_events" {
		t.Fatalf("ожидали ключ очереди по умолчанию, получили %q", cfg.Queues.Notifications)
	}
}
