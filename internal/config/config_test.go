package config

import "testing"

func TestLoadClientPrecedence(t *testing.T) {
	t.Setenv("CONFERENCE_SERVER", "ws://env.example.com/ws")
	t.Setenv("STUN_SERVER", "stun:env.example.com:3478")
	t.Setenv("TURN_SERVER", "")

	cfg := LoadClient(Options{ServerURL: "ws://flag.example.com/ws"})

	if cfg.ServerURL != "ws://flag.example.com/ws" {
		t.Fatalf("server url = %q, flag should win over env", cfg.ServerURL)
	}
	if cfg.STUNServer != "stun:env.example.com:3478" {
		t.Fatalf("stun = %q, env should win over default", cfg.STUNServer)
	}

	t.Setenv("CONFERENCE_SERVER", "")
	t.Setenv("STUN_SERVER", "")
	cfg = LoadClient(Options{})
	if cfg.ServerURL != DefaultServerURL || cfg.STUNServer != DefaultSTUN {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestTURNServersOnlyWhenConfigured(t *testing.T) {
	cfg := &Client{}
	if urls := cfg.TURNServers(); urls != nil {
		t.Fatalf("unconfigured TURN produced urls: %v", urls)
	}

	cfg.TURNServer = "turn:relay.example.com"
	urls := cfg.TURNServers()
	if len(urls) != 2 {
		t.Fatalf("turn urls = %v, want udp and tcp variants", urls)
	}
	if urls[0] != "turn:relay.example.com:3478?transport=udp" {
		t.Fatalf("udp url = %q", urls[0])
	}
}
