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

package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// Logger is the structured-logging surface every connector component
// depends on. Nothing below cmd/ talks to zerolog directly.
type Logger interface {
	Trace() *zerolog.Event
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
	Fatal() *zerolog.Event
	With() zerolog.Context
	WithComponent(component string) Logger
	SetLevel(level zerolog.Level)
}

type zlogLogger struct {
	z zerolog.Logger
}

func (l *zlogLogger) Trace() *zerolog.Event { return l.z.Trace() }
func (l *zlogLogger) Debug() *zerolog.Event { return l.z.Debug() }
func (l *zlogLogger) Info() *zerolog.Event  { return l.z.Info() }
func (l *zlogLogger) Warn() *zerolog.Event  { return l.z.Warn() }
func (l *zlogLogger) Error() *zerolog.Event { return l.z.Error() }
func (l *zlogLogger) Fatal() *zerolog.Event { return l.z.Fatal() }
func (l *zlogLogger) With() zerolog.Context { return l.z.With() }

func (l *zlogLogger) WithComponent(component string) Logger {
	return &zlogLogger{z: l.z.With().Str("component", component).Logger()}
}

func (l *zlogLogger) SetLevel(level zerolog.Level) {
	l.z = l.z.Level(level)
}

// NewTestLogger returns a Logger that discards everything, for unit tests
// that don't assert on log content.
func NewTestLogger() Logger {
	return &zlogLogger{z: zerolog.New(io.Discard).Level(zerolog.Disabled)}
}
