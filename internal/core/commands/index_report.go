// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	goctx "context"
	"fmt"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/cor"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
)

// Indexer appends rows to the report index.
type Indexer interface {
	Insert(ctx goctx.Context, row *model.ReportIndexRow) error
}

// IndexReport records a published report in the report index. The index is
// a convenience for listing; a failed insert is a warning.
type IndexReport struct {
	cor.BaseCommand
	indexer Indexer
}

func NewIndexReport(indexer Indexer) *IndexReport {
	out := &IndexReport{BaseCommand: *cor.NewBaseCommand(StageIndex), indexer: indexer}
	out.InputParamName = ParamReportKey
	return out
}

func (c *IndexReport) IsExecutable(context cor.Context) bool {
	return c.indexer != nil && c.BaseCommand.IsExecutable(context)
}

func (c *IndexReport) Execute(context cor.Context) {
	doc := getDocument(context)
	row := model.NewReportIndexRow(*getInstance(context), GetReportKey(context), len(doc.Images), getMode(context))
	if err := c.indexer.Insert(context.GetContext(), row); err != nil {
		c.Warn(context, fmt.Errorf("report index insert for %s: %w", row.ReportKey, err))
		return
	}
	c.Succeed(context)
}
