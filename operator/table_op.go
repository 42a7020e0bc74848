/*
 * Copyright 2024 The RuleGo Authors.
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

package operator

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/rulego/dataframe/frame"
	"github.com/rulego/dataframe/schema"
)

// Scan yields the input frame's partitions in declared order, unchanged.
// It is always the bottom-most operator of a compiled plan.
type Scan struct {
	InputSchema schema.Schema
	Partitions  [][]arrow.Record
}

func (o *Scan) Schema() schema.Schema { return o.InputSchema }

func (o *Scan) Execute(ctx context.Context, mem memory.Allocator) ([]frame.PartitionIter, error) {
	iters := make([]frame.PartitionIter, len(o.Partitions))
	for i, part := range o.Partitions {
		iters[i] = frame.NewSliceIter(part)
	}
	return iters, nil
}
