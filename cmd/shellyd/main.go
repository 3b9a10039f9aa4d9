/*
 * Copyright 2025 FastyBird s.r.o.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FastyBird/shelly-connector/pkg/config"
	"github.com/FastyBird/shelly-connector/pkg/connector"
	connlogger "github.com/FastyBird/shelly-connector/pkg/logger"
)

//go:embed config.json
var defaultConfig []byte

var errConfigFileMissing = errors.New("config file not found")

// tickInterval is how often the main loop runs Connector.Handle between
// message arrivals; it is not a protocol timing and can be generous.
const tickInterval = 50 * time.Millisecond

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/shelly-connector/connector.json", "path to connector config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := cfg.Logging
	if logCfg == nil {
		logCfg = &connlogger.Config{Level: "info", Output: "stdout"}
	}

	log, err := connlogger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conn := connector.New(cfg, log)

	if err := conn.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize connector: %w", err)
	}

	if err := conn.Start(ctx); err != nil {
		return fmt.Errorf("failed to start connector: %w", err)
	}

	log.Info().Str("config", *configPath).Msg("shelly connector started")

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			conn.Handle()
		}
	}

	log.Info().Msg("shutting down shelly connector")

	return conn.Stop()
}

// loadConfig reads a JSON config file via config.FileLoader, falling back
// to the embedded default when the requested path does not exist and the
// operator has opted in via SHELLY_ALLOW_EMBEDDED_DEFAULT_CONFIG.
func loadConfig(path string) (*config.Config, error) {
	var cfg config.Config

	loader := config.NewFileLoader(nil)

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}

		if os.Getenv("SHELLY_ALLOW_EMBEDDED_DEFAULT_CONFIG") != "true" {
			return nil, fmt.Errorf(
				"%w at %s (set SHELLY_ALLOW_EMBEDDED_DEFAULT_CONFIG=true to use embedded defaults)",
				errConfigFileMissing,
				path,
			)
		}

		if err := loader.LoadBytes(defaultConfig, &cfg); err != nil {
			return nil, err
		}

		return &cfg, nil
	}

	if err := loader.Load(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
