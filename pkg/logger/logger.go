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

// Package logger provides JSON structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how a connector-wide logger is constructed.
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Debug  bool   `json:"debug" yaml:"debug"`
	Output string `json:"output" yaml:"output"`
}

// New builds a Logger from Config. A nil Config yields an info-level
// logger writing to stdout.
func New(cfg *Config) (Logger, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout

	level := zerolog.InfoLevel

	if cfg != nil {
		if cfg.Output == "stderr" {
			out = os.Stderr
		}

		switch {
		case cfg.Debug:
			level = zerolog.DebugLevel
		case cfg.Level != "":
			parsed, err := zerolog.ParseLevel(cfg.Level)
			if err != nil {
				return nil, err
			}

			level = parsed
		}
	}

	z := zerolog.New(out).Level(level).With().Timestamp().Logger()

	return &zlogLogger{z: z}, nil
}
