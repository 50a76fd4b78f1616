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
// This file, `queries.go`, centralizes the BigQuery SQL used by the report
// index. Table names are injected with `fmt.Sprintf`; every value comes in
// through a named query parameter.
package services

const (
	// QryReportsByTenant lists the newest reports of a tenant.
	//
	// Placeholders:
	// - `%s`: The fully qualified name of the report table.
	//
	// Parameters: @tenant_id, @limit.
	QryReportsByTenant = "SELECT * FROM `%s` WHERE tenant_id = @tenant_id ORDER BY created_at DESC LIMIT @limit"

	// QryReportsByProject narrows QryReportsByTenant to one project.
	//
	// Parameters: @tenant_id, @customer, @project, @limit.
	QryReportsByProject = "SELECT * FROM `%s` WHERE tenant_id = @tenant_id AND customer = @customer AND project = @project ORDER BY created_at DESC LIMIT @limit"

	// QryReportByID finds one report by the id derived from its key. Rows
	// are append-only, so a retried insert can leave duplicates; any one of
	// them will do.
	//
	// Parameters: @report_id.
	QryReportByID = "SELECT * FROM `%s` WHERE report_id = @report_id LIMIT 1"
)
