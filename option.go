/*
 * Copyright 2025 The RuleGo Authors.
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

package dataframe

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rulego/dataframe/logger"
	"github.com/rulego/dataframe/plan"
)

// Option represents a modification to an Engine's default behavior,
// applied by New in the order given.
type Option func(*Engine)

// WithLogger installs a custom logger as the package-level default,
// replacing every engine's and operator's log destination.
//
// Example:
//
//	custom := logger.NewLogger(logger.DEBUG, os.Stderr)
//	eng := dataframe.New(input, dataframe.WithLogger(custom))
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		logger.SetDefault(log)
	}
}

// WithLogLevel sets the level of the current default logger, leaving its
// output destination untouched.
func WithLogLevel(level logger.Level) Option {
	return func(e *Engine) {
		logger.GetDefault().SetLevel(level)
	}
}

// WithLogOutput installs a new default logger writing at level to output.
func WithLogOutput(output io.Writer, level logger.Level) Option {
	return func(e *Engine) {
		logger.SetDefault(logger.NewLogger(level, output))
	}
}

// WithDiscardLog disables all log output, for benchmarks and tests that
// don't want the engine writing anywhere.
func WithDiscardLog() Option {
	return func(e *Engine) {
		logger.SetDefault(logger.NewDiscardLogger())
	}
}

// WithAllocator swaps the Go heap allocator New installs by default for
// mem, used for every intermediate array the compiled operator tree
// builds.
func WithAllocator(mem memory.Allocator) Option {
	return func(e *Engine) {
		e.mem = mem
		e.decoder = plan.NewJSONDecoder(mem)
	}
}

// WithDecoder overrides the engine's wire codec, used by TransformBytes
// and TransformBytesWithStats. The default is plan.JSONDecoder.
func WithDecoder(d plan.Decoder) Option {
	return func(e *Engine) {
		e.decoder = d
	}
}

// WithDefaultBinCount sets the bin count substituted into any binning or
// group-by binning stage whose BinCount is left at zero, so a fleet of
// plans sharing one bin resolution doesn't have to repeat it on every
// transform. The engine default is 10.
func WithDefaultBinCount(n uint32) Option {
	return func(e *Engine) {
		e.defaultBinCount = n
	}
}
