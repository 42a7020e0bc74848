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

/*
Package dataframe compiles a declarative transform plan into a tree of
physical operators over an Arrow-backed columnar Frame, and drives that
tree to completion.

A transform plan (plan.DataFrameTransform) describes, at most, one of each
stage in a fixed order: a row-number column, a chain of dense-rank
"value identifier" columns, a pre-binning projection, a single hash
group-by (optionally with one histogram-style binned key), and a final
sort with an optional row limit. The engine never parses a query language
and never optimizes a plan — the caller's plan already names the stages
it wants, in the order they apply.

# Binning

The binning engine is the one genuinely domain-specific subsystem: it
turns a numeric, temporal, or decimal column into a fixed number of
equal-width bins, deriving bin width and bounds from a one-row statistics
frame (a binned group-by key may also take its fractional bin position
from a pre-computed column instead of recomputing it per row). A binned
group-by key, uniquely among this engine's stages, also triggers bin
completion — synthesizing a row for every bin key in [0, bin_count) that
the input left empty, so a caller's output has one row per bin regardless
of how sparse the input was.

# Usage

	eng := dataframe.New(input, dataframe.WithDefaultBinCount(20))
	out, err := eng.TransformWithStats(ctx, transform, stats)
	if err != nil {
		var perr *dferrors.PlanError
		if errors.As(err, &perr) {
			// plan failed static validation before any operator ran
		}
		return err
	}
	defer out.Release()

	stream := eng.CreateIpcStream(out)
	for {
		chunk, ok, err := stream.Next(ctx)
		if err != nil || !ok {
			break
		}
		// forward chunk across a wire boundary
	}

# Non-goals

This engine does not parse a query language, does not optimize plans, has
no notion of a second execution node, persists nothing, and supports no
transaction semantics. Its one join is the internal bin-completion left
join described above — it is not a general join engine.
*/
package dataframe
