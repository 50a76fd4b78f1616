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
	"strings"
	"time"
)

// instanceIDReplacer turns an ISO-8601 timestamp into a path-safe token by
// replacing the ':' and '.' separators with '-'.
var instanceIDReplacer = strings.NewReplacer(":", "-", ".", "-")

// ReportInstance is one execution of the pipeline for one video. It is
// created once at the start of a run and never mutated afterwards; its
// InstanceID seeds every storage key produced by the run.
type ReportInstance struct {
	TenantID   string    `json:"tenantId"`
	Customer   string    `json:"customer"`
	Project    string    `json:"project"`
	InstanceID string    `json:"instanceId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewReportInstance derives the instance from the creation time. Two runs
// for the same tenant would need to start within the same millisecond to
// collide.
func NewReportInstance(tenantID, customer, project string, createdAt time.Time) ReportInstance {
	createdAt = createdAt.UTC()
	return ReportInstance{
		TenantID:   tenantID,
		Customer:   customer,
		Project:    project,
		InstanceID: InstanceIDFromTime(createdAt),
		CreatedAt:  createdAt,
	}
}

// InstanceIDFromTime formats t (in UTC, millisecond resolution) as
// 2006-01-02T15-04-05-000Z.
func InstanceIDFromTime(t time.Time) string {
	return instanceIDReplacer.Replace(t.UTC().Format("2006-01-02T15:04:05.000Z"))
}
