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

// Command dfbench builds a synthetic Frame, runs a handful of representative
// transform plans against it, and reports compile+execute timing and output
// row counts. It exists to exercise dataframe.Engine end to end without a
// wire-format plan source, the way the teacher's examples/ programs exercise
// StreamSQL against synthetic data rather than a live stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rulego/dataframe"
	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/logger"
	"github.com/rulego/dataframe/plan"
	"github.com/rulego/dataframe/scalar"
	"github.com/rulego/dataframe/schema"
)

var (
	rows           = flag.Int("rows", 200000, "number of synthetic rows to generate")
	partitionCount = flag.Int("partitions", 4, "number of input partitions to split rows across")
	binCount       = flag.Uint("bins", 20, "bin count for the binning benchmark")
	verbose        = flag.Bool("v", false, "enable debug logging")
)

func main() {
	flag.Parse()
	if *verbose {
		logger.SetDefault(logger.NewLogger(logger.DEBUG, os.Stdout))
	} else {
		logger.SetDefault(logger.NewDiscardLogger())
	}

	input, stats, err := syntheticFrame(*rows, *partitionCount)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build synthetic frame:", err)
		os.Exit(1)
	}
	defer input.Release()
	defer stats.Release()

	eng := dataframe.New(input, dataframe.WithDefaultBinCount(uint32(*binCount)))

	runBenchmark(eng, "group_by_device", groupByDevicePlan())
	runBenchmark(eng, "row_number", rowNumberPlan())
	runBenchmarkWithStats(eng, "binned_group_by", binnedGroupByPlan(), stats)
}

func runBenchmark(eng *dataframe.Engine, name string, t *plan.DataFrameTransform) {
	runBenchmarkWithStats(eng, name, t, nil)
}

func runBenchmarkWithStats(eng *dataframe.Engine, name string, t *plan.DataFrameTransform, stats *frame.Frame) {
	ctx := context.Background()
	start := time.Now()
	var out *frame.Frame
	var err error
	if stats != nil {
		out, err = eng.TransformWithStats(ctx, t, stats)
	} else {
		out, err = eng.Transform(ctx, t)
	}
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("%-20s FAILED after %v: %v\n", name, elapsed, err)
		return
	}
	defer out.Release()
	fmt.Printf("%-20s %10v  %d rows out\n", name, elapsed, out.NumRows())
}

// syntheticFrame builds a two-column (device string, temperature float64)
// Frame of n rows spread across partitionCount partitions, plus the one-row
// min/max statistics Frame binning needs.
func syntheticFrame(n, partitionCount int) (*frame.Frame, *frame.Frame, error) {
	mem := memory.NewGoAllocator()
	s, err := schema.New(
		schema.Field{Name: "device", Type: schema.Utf8Type, Nullable: false},
		schema.Field{Name: "temperature", Type: schema.Float(64), Nullable: false},
	)
	if err != nil {
		return nil, nil, err
	}

	devices := []string{"sensor-1", "sensor-2", "sensor-3", "sensor-4"}
	rng := rand.New(rand.NewSource(42))

	minTemp, maxTemp := 1e9, -1e9
	partitions := make([][]arrow.Record, partitionCount)
	perPartition := (n + partitionCount - 1) / partitionCount
	remaining := n
	for p := 0; p < partitionCount; p++ {
		count := perPartition
		if count > remaining {
			count = remaining
		}
		remaining -= count

		rb, err := frame.NewRecordBuilder(mem, s)
		if err != nil {
			return nil, nil, err
		}
		for i := 0; i < count; i++ {
			temp := -20 + rng.Float64()*80
			if temp < minTemp {
				minTemp = temp
			}
			if temp > maxTemp {
				maxTemp = temp
			}
			if err := rb.Column(0).Append(scalar.Str(devices[i%len(devices)])); err != nil {
				rb.Release()
				return nil, nil, err
			}
			if err := rb.Column(1).Append(scalar.Float64Val(schema.Float(64), temp)); err != nil {
				rb.Release()
				return nil, nil, err
			}
		}
		rec, err := rb.NewRecord()
		rb.Release()
		if err != nil {
			return nil, nil, err
		}
		partitions[p] = []arrow.Record{rec}
	}

	f := frame.New(s, partitions)

	statsSchema, err := schema.New(
		schema.Field{Name: "min_temperature", Type: schema.Float(64)},
		schema.Field{Name: "max_temperature", Type: schema.Float(64)},
	)
	if err != nil {
		return nil, nil, err
	}
	srb, err := frame.NewRecordBuilder(mem, statsSchema)
	if err != nil {
		return nil, nil, err
	}
	if err := srb.Column(0).Append(scalar.Float64Val(schema.Float(64), minTemp)); err != nil {
		srb.Release()
		return nil, nil, err
	}
	if err := srb.Column(1).Append(scalar.Float64Val(schema.Float(64), maxTemp)); err != nil {
		srb.Release()
		return nil, nil, err
	}
	statsRec, err := srb.NewRecord()
	srb.Release()
	if err != nil {
		return nil, nil, err
	}
	stats := frame.NewSinglePartition(statsSchema, []arrow.Record{statsRec})

	return f, stats, nil
}

func groupByDevicePlan() *plan.DataFrameTransform {
	tempField := "temperature"
	return &plan.DataFrameTransform{
		GroupBy: &plan.GroupByTransform{
			Keys: []plan.GroupByKey{{FieldName: "device", OutputAlias: "device"}},
			Aggregates: []plan.GroupByAggregate{
				{FieldName: &tempField, OutputAlias: "avg_temp", AggregationFunction: plan.Average},
				{FieldName: &tempField, OutputAlias: "max_temp", AggregationFunction: plan.Max},
				{OutputAlias: "count", AggregationFunction: plan.CountStar},
			},
		},
		OrderBy: &plan.OrderByTransform{
			Constraints: []plan.OrderByConstraint{{Field: "avg_temp", Ascending: false}},
		},
	}
}

func rowNumberPlan() *plan.DataFrameTransform {
	return &plan.DataFrameTransform{
		RowNumber: &plan.RowNumberTransform{OutputAlias: "row_num"},
	}
}

func binnedGroupByPlan() *plan.DataFrameTransform {
	tempField := "temperature"
	return &plan.DataFrameTransform{
		GroupBy: &plan.GroupByTransform{
			Keys: []plan.GroupByKey{{
				FieldName:   "temperature",
				OutputAlias: "temperature_bin",
				Binning: &plan.GroupByKeyBinning{
					StatsMinField:       "min_temperature",
					StatsMaxField:       "max_temperature",
					BinCount:            uint32(*binCount),
					OutputBinWidthAlias: "bin_width",
					OutputBinLbAlias:    "bin_lb",
					OutputBinUbAlias:    "bin_ub",
				},
			}},
			Aggregates: []plan.GroupByAggregate{
				{OutputAlias: "count", AggregationFunction: plan.CountStar},
				{FieldName: &tempField, OutputAlias: "avg_temp", AggregationFunction: plan.Average},
			},
		},
	}
}
