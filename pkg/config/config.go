// Package config assembles a node's runtime configuration from defaults,
// an optional key=value file, and environment variables, in that order
// of increasing precedence.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// NodeConfig holds everything a running node needs that is not part of
// consensus: where to listen, who to dial first, whether to mine, and
// how loud to log.
type NodeConfig struct {
	NodeID string

	P2PPort      int
	InitialPeers []string
	MaxPeers     int

	MiningEnabled bool

	LogLevel string
}

// DefaultConfig returns the configuration a node starts with before any
// file or environment override is applied.
func DefaultConfig() *NodeConfig {
	return &NodeConfig{
		NodeID:        "minicoin-node",
		P2PPort:       3151,
		InitialPeers:  nil,
		MaxPeers:      100,
		MiningEnabled: false,
		LogLevel:      "info",
	}
}

// Load builds a NodeConfig from defaults, then filePath if non-empty
// (a missing file is not an error), then environment variables.
func Load(filePath string) (*NodeConfig, error) {
	cfg := DefaultConfig()

	if filePath != "" {
		values, err := loadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		applyFileConfig(cfg, values)
	}

	applyEnv(cfg)
	return cfg, nil
}

// loadFile parses a "key = value" file, one setting per line, '#'
// comments and blank lines skipped.
func loadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}
		values[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return values, scanner.Err()
}

func applyFileConfig(cfg *NodeConfig, values map[string]string) {
	for key, value := range values {
		switch key {
		case "node.id":
			cfg.NodeID = value
		case "p2p.port":
			if port, err := strconv.Atoi(value); err == nil {
				cfg.P2PPort = port
			}
		case "p2p.peers":
			cfg.InitialPeers = parseStringList(value)
		case "p2p.maxpeers":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.MaxPeers = n
			}
		case "mining.enabled":
			cfg.MiningEnabled = parseBool(value)
		case "log.level":
			cfg.LogLevel = value
		}
	}
}

// applyEnv overrides cfg with any MINICOIN_* environment variables
// present; these take precedence over both defaults and the file.
func applyEnv(cfg *NodeConfig) {
	if v := os.Getenv("MINICOIN_NODE_ID"); v != "" {
		cfg.NodeID = v
	}
	if v := os.Getenv("MINICOIN_P2P_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.P2PPort = port
		}
	}
	if v := os.Getenv("MINICOIN_PEERS"); v != "" {
		cfg.InitialPeers = parseStringList(v)
	}
	if v := os.Getenv("MINICOIN_MAX_PEERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxPeers = n
		}
	}
	if v := os.Getenv("MINICOIN_MINING_ENABLED"); v != "" {
		cfg.MiningEnabled = parseBool(v)
	}
	if v := os.Getenv("MINICOIN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate rejects configurations that cannot bring up a node.
func (c *NodeConfig) Validate() error {
	if c.P2PPort < 1 || c.P2PPort > 65535 {
		return fmt.Errorf("invalid p2p port: %d", c.P2PPort)
	}
	if c.MaxPeers < 1 {
		return fmt.Errorf("max peers must be positive, got %d", c.MaxPeers)
	}
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return nil
}

// ListenAddr returns the address the P2P listener should bind.
func (c *NodeConfig) ListenAddr() string {
	return fmt.Sprintf(":%d", c.P2PPort)
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
