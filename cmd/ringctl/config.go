package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/ringctl/internal/fabric"
)

type fileConfig struct {
	ID          string      `toml:"id"`
	HTTPAddr    string      `toml:"http_addr"`
	FabricAddr  string      `toml:"fabric_addr"`
	StatePath   string      `toml:"state_path"`
	LogLevel    string      `toml:"log_level"`
	CorsOrigins []string    `toml:"cors_origins"`
	MaxCycles   int         `toml:"max_cycles"`
	Delay       string      `toml:"delay"`
	Peers       []peerEntry `toml:"peers"`
}

type peerEntry struct {
	ID   string `toml:"id"`
	Addr string `toml:"addr"`
}

type nodeConfig struct {
	ID          string
	HTTPAddr    string
	FabricAddr  string
	StatePath   string
	LogLevel    string
	CorsOrigins []string
	MaxCycles   *int
	Delay       time.Duration
	Peers       []fabric.PeerAddr
}

func defaultNodeConfig() nodeConfig {
	return nodeConfig{
		ID:         "ring-0",
		HTTPAddr:   ":7080",
		FabricAddr: ":7090",
		StatePath:  "ringctl-state.toml",
		LogLevel:   "info",
	}
}

func loadNodeConfig(path string) (nodeConfig, error) {
	cfg := defaultNodeConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nodeConfig{}, fmt.Errorf("load ring config: %w", err)
	}

	if meta.IsDefined("id") {
		id := strings.TrimSpace(raw.ID)
		if id == "" {
			return nodeConfig{}, fmt.Errorf("ring config: id must not be empty")
		}
		cfg.ID = id
	}
	if meta.IsDefined("http_addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined("fabric_addr") {
		cfg.FabricAddr = strings.TrimSpace(raw.FabricAddr)
	}
	if meta.IsDefined("state_path") {
		cfg.StatePath = strings.TrimSpace(raw.StatePath)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("max_cycles") {
		if raw.MaxCycles < 0 {
			return nodeConfig{}, fmt.Errorf("ring config: max_cycles must be non-negative")
		}
		v := raw.MaxCycles
		cfg.MaxCycles = &v
	}
	if meta.IsDefined("delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Delay))
		if err != nil {
			return nodeConfig{}, fmt.Errorf("ring config: parse delay: %w", err)
		}
		if d < 0 {
			return nodeConfig{}, fmt.Errorf("ring config: delay must be non-negative")
		}
		cfg.Delay = d
	}
	if meta.IsDefined("peers") {
		peers := make([]fabric.PeerAddr, 0, len(raw.Peers))
		for i, p := range raw.Peers {
			id := strings.TrimSpace(p.ID)
			addr := strings.TrimSpace(p.Addr)
			if id == "" || addr == "" {
				return nodeConfig{}, fmt.Errorf("ring config: peers[%d] needs id and addr", i)
			}
			peers = append(peers, fabric.PeerAddr{ID: id, Addr: addr})
		}
		cfg.Peers = peers
	}

	return cfg, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
