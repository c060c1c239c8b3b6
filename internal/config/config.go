// Package config loads server and client configuration. Priority is CLI
// flags over environment variables over defaults; in development a .env
// file is honored.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const (
	DefaultPort      = "8080"
	DefaultStaticDir = "web"
	DefaultServerURL = "ws://localhost:8080/ws"
	DefaultSTUN      = "stun:stun.l.google.com:19302"
)

// Server holds the signaling server configuration.
type Server struct {
	Port      string
	StaticDir string

	// Assistant proxy. Absent unless an API key is configured.
	AssistantKey   string
	AssistantURL   string
	AssistantModel string
}

// LoadServer reads server configuration from the environment.
func LoadServer() *Server {
	_ = godotenv.Load()

	return &Server{
		Port:           getEnv("PORT", DefaultPort),
		StaticDir:      getEnv("STATIC_DIR", DefaultStaticDir),
		AssistantKey:   os.Getenv("ASSISTANT_API_KEY"),
		AssistantURL:   getEnv("ASSISTANT_API_URL", "https://api.openai.com/v1"),
		AssistantModel: getEnv("ASSISTANT_MODEL", "gpt-4o-mini"),
	}
}

// Addr returns the listen address for the configured port.
func (s *Server) Addr() string {
	return fmt.Sprintf(":%s", s.Port)
}

// Client holds the conference client configuration.
type Client struct {
	ServerURL  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// Options carries CLI flag overrides into LoadClient.
type Options struct {
	ServerURL  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// LoadClient resolves client configuration: flag > env > default.
func LoadClient(opts Options) *Client {
	return &Client{
		ServerURL:  firstOf(opts.ServerURL, os.Getenv("CONFERENCE_SERVER"), DefaultServerURL),
		STUNServer: firstOf(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN),
		TURNServer: firstOf(opts.TURNServer, os.Getenv("TURN_SERVER"), ""),
		TURNUser:   firstOf(opts.TURNUser, os.Getenv("TURN_USERNAME"), ""),
		TURNPass:   firstOf(opts.TURNPass, os.Getenv("TURN_PASSWORD"), ""),
	}
}

// STUNServers returns the STUN URLs for the ICE configuration.
func (c *Client) STUNServers() []string {
	return []string{c.STUNServer}
}

// TURNServers returns TURN URLs if a TURN server is configured.
func (c *Client) TURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
