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

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/FastyBird/shelly-connector/pkg/logger"
)

// Loader reads a connector configuration from some backend.
type Loader interface {
	Load(path string, dst *Config) error
}

// FileLoader loads configuration from a local JSON file.
type FileLoader struct {
	logger logger.Logger
}

// NewFileLoader builds a FileLoader. A nil logger is replaced with a
// discard logger so callers never need a nil check.
func NewFileLoader(log logger.Logger) *FileLoader {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &FileLoader{logger: log}
}

// Load reads and unmarshals a JSON file, then applies documented defaults.
func (f *FileLoader) Load(path string, dst *Config) error {
	f.logger.Debug().Str("path", path).Msg("loading connector configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	return f.LoadBytes(data, dst)
}

// LoadBytes unmarshals an already-obtained JSON document, then applies
// documented defaults. Used by callers that source raw bytes from
// somewhere other than the filesystem, e.g. an embedded default config.
func (f *FileLoader) LoadBytes(data []byte, dst *Config) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	dst.ApplyDefaults()

	return nil
}
