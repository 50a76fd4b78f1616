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

// Package services contains the business logic for interacting with data sources.
// This file, `report_index.go`, defines the ReportIndex, an append-only
// BigQuery table with one row per published report. The pipeline inserts a
// row after every publish; the API lists a tenant's reports from it.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 100

// ReportIndex reads and writes the report index table.
type ReportIndex struct {
	BigqueryClient *bigquery.Client // Client for interacting with Google BigQuery.
	DatasetName    string           // The name of the BigQuery dataset.
	ReportTable    string           // The name of the report index table.
}

// NewReportIndex returns nil when no client is configured, which disables
// indexing.
func NewReportIndex(client *bigquery.Client, dataset, table string) *ReportIndex {
	if client == nil || dataset == "" || table == "" {
		return nil
	}
	return &ReportIndex{BigqueryClient: client, DatasetName: dataset, ReportTable: table}
}

func (s *ReportIndex) table() *bigquery.Table {
	return s.BigqueryClient.Dataset(s.DatasetName).Table(s.ReportTable)
}

// GetFQN returns the fully qualified table name in standard SQL form,
// e.g. `gcp-project-id.reports_ds.reports`.
func (s *ReportIndex) GetFQN() string {
	return strings.Replace(s.table().FullyQualifiedName(), ":", ".", -1)
}

// EnsureTable creates the table from the row schema when it does not exist.
func (s *ReportIndex) EnsureTable(ctx context.Context) error {
	t := s.table()
	_, err := t.Metadata(ctx)
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return fmt.Errorf("report table metadata: %w", err)
	}
	schema, err := bigquery.InferSchema(model.ReportIndexRow{})
	if err != nil {
		return err
	}
	err = t.Create(ctx, &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "created_at",
		},
	})
	if err != nil {
		return fmt.Errorf("create report table: %w", err)
	}
	return nil
}

// Insert streams one row into the table.
func (s *ReportIndex) Insert(ctx context.Context, row *model.ReportIndexRow) error {
	if err := s.table().Inserter().Put(ctx, row); err != nil {
		return &model.StoreUnavailableError{Op: "index", Key: row.ReportKey, Err: err}
	}
	return nil
}

// List returns the newest reports of a tenant, optionally narrowed to one
// customer project.
func (s *ReportIndex) List(ctx context.Context, tenantID, customer, project string, limit int) ([]*model.ReportIndexRow, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	params := []bigquery.QueryParameter{
		{Name: "tenant_id", Value: tenantID},
		{Name: "limit", Value: limit},
	}
	queryText := fmt.Sprintf(QryReportsByTenant, s.GetFQN())
	if customer != "" && project != "" {
		queryText = fmt.Sprintf(QryReportsByProject, s.GetFQN())
		params = append(params,
			bigquery.QueryParameter{Name: "customer", Value: customer},
			bigquery.QueryParameter{Name: "project", Value: project})
	}
	return s.query(ctx, queryText, params)
}

// Get returns the row with reportID.
func (s *ReportIndex) Get(ctx context.Context, reportID string) (*model.ReportIndexRow, error) {
	rows, err := s.query(ctx, fmt.Sprintf(QryReportByID, s.GetFQN()), []bigquery.QueryParameter{
		{Name: "report_id", Value: reportID},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &model.NotFoundError{Key: reportID, Err: errors.New("no such report")}
	}
	return rows[0], nil
}

func (s *ReportIndex) query(ctx context.Context, queryText string, params []bigquery.QueryParameter) ([]*model.ReportIndexRow, error) {
	q := s.BigqueryClient.Query(queryText)
	q.Parameters = params
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, &model.StoreUnavailableError{Op: "query", Key: s.ReportTable, Err: err}
	}
	out := make([]*model.ReportIndexRow, 0)
	for {
		r := &model.ReportIndexRow{}
		err := itr.Next(r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to iterate report rows: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}
