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

// Package test provides utility functions, sample data and fakes that support
// the application's test suite. It loads the test configuration once and
// offers in-process stand-ins for the external systems the pipeline calls.
package test

import (
	"log"
	"os"
	"testing"

	"github.com/jaycherian/gcp-go-daily-report/internal/cloud"
)

// StateManager caches the configuration for the duration of a test run.
type StateManager struct {
	config *cloud.Config
}

var state = &StateManager{}

// HandleErr fails the test when err is not nil.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// GetTestUploadMessageText returns a GCS finalize notification for a video
// uploaded under a tenant's uploads folder.
func GetTestUploadMessageText() string {
	return `{
  "kind": "storage#object",
  "id": "daily-reports/tenant/tenant-1/acme/tower-a/uploads/walkthrough.mp4/1728615848664286",
  "selfLink": "https://www.googleapis.com/storage/v1/b/daily-reports/o/tenant%2Ftenant-1%2Facme%2Ftower-a%2Fuploads%2Fwalkthrough.mp4",
  "name": "tenant/tenant-1/acme/tower-a/uploads/walkthrough.mp4",
  "bucket": "daily-reports",
  "generation": "1728615848664286",
  "metageneration": "1",
  "contentType": "video/mp4",
  "timeCreated": "2024-10-11T03:04:08.672Z",
  "updated": "2024-10-11T03:04:08.672Z",
  "storageClass": "STANDARD",
  "size": "259348037",
  "md5Hash": "67c1rAU+1RYZzK5zp8iBkA==",
  "metadata": { "touch": "18" },
  "crc32c": "IYeSTw==",
  "etag": "CN658+yrhYkDEAE="
}`
}

// SetupOS points the configuration loader at the test configuration.
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "test")
	return err
}

// GetConfig loads the test configuration once and returns the cached value.
// Tests that run outside the repository root get the defaults of
// cloud.NewConfig with the memory storage backend.
func GetConfig() *cloud.Config {
	if state.config == nil {
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		config.Storage.Backend = cloud.StorageBackendMemory
		cloud.LoadConfig(config)
		state.config = config
	}
	return state.config
}
