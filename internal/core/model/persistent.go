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

package model

import (
	"time"

	"github.com/google/uuid"
)

// ReportIndexRow is the BigQuery row written for every published report.
type ReportIndexRow struct {
	ReportID   string    `json:"report_id" bigquery:"report_id"`
	TenantID   string    `json:"tenant_id" bigquery:"tenant_id"`
	Customer   string    `json:"customer" bigquery:"customer"`
	Project    string    `json:"project" bigquery:"project"`
	InstanceID string    `json:"instance_id" bigquery:"instance_id"`
	ReportKey  string    `json:"report_key" bigquery:"report_key"`
	ImageCount int       `json:"image_count" bigquery:"image_count"`
	Mode       string    `json:"mode" bigquery:"mode"`
	CreatedAt  time.Time `json:"created_at" bigquery:"created_at"`
}

// NewReportIndexRow keys the row by a name-based UUID of the report key, so a
// retried insert for the same report produces the same id.
func NewReportIndexRow(instance ReportInstance, reportKey string, imageCount int, mode string) *ReportIndexRow {
	return &ReportIndexRow{
		ReportID:   uuid.NewSHA1(uuid.NameSpaceURL, []byte(reportKey)).String(),
		TenantID:   instance.TenantID,
		Customer:   instance.Customer,
		Project:    instance.Project,
		InstanceID: instance.InstanceID,
		ReportKey:  reportKey,
		ImageCount: imageCount,
		Mode:       mode,
		CreatedAt:  instance.CreatedAt,
	}
}
