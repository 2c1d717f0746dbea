// Copyright 2024 The sharpsim Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

// defaultLogger is returned by Default() for callers that don't need a
// component-scoped logger of their own.
var defaultLogger = Get("sharpsim")

// Default returns the module-wide default Logger.
func Default() Logger { return defaultLogger }

// Info formats and emits an informational message on the default logger.
func Info(format string, args ...interface{}) { defaultLogger.Info(format, args...) }

// Warn formats and emits a warning message on the default logger.
func Warn(format string, args ...interface{}) { defaultLogger.Warn(format, args...) }

// Error formats and emits an error message on the default logger.
func Error(format string, args ...interface{}) { defaultLogger.Error(format, args...) }

// Debug formats and emits a debug message on the default logger.
func Debug(format string, args ...interface{}) { defaultLogger.Debug(format, args...) }
