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

// Package cloud contains data structures and utilities for interacting with Google Cloud services.
// This file defines the Google Cloud Storage notification payload that the
// worker receives when a video is uploaded, and its distilled form.
//
// Structs:
//   - GCSPubSubNotification: Maps to the JSON payload from GCS event notifications.
//   - GCSObject: A simplified internal model for GCS objects used in processing workflows.
package cloud

import (
	"encoding/json"
	"fmt"
)

// GetGCSObjectName returns the cor.Context key under which the GCSObject
// being processed is stored.
func GetGCSObjectName() string {
	return "__GCS__OBJ__"
}

// GCSPubSubNotification is the JSON payload GCS publishes when an object
// changes.
type GCSPubSubNotification struct {
	Kind           string                 `json:"kind"`
	ID             string                 `json:"id"`
	SelfLink       string                 `json:"selfLink"`
	Name           string                 `json:"name"`
	Bucket         string                 `json:"bucket"`
	Generation     string                 `json:"generation"`
	MetaGeneration string                 `json:"metageneration"`
	ContentType    string                 `json:"contentType"`
	TimeCreated    string                 `json:"timeCreated"`
	Updated        string                 `json:"updated"`
	Size           string                 `json:"size"`
	MD5Hash        string                 `json:"md5Hash"`
	MediaLink      string                 `json:"mediaLink"`
	MetaData       map[string]interface{} `json:"metadata"`
	Crc32c         string                 `json:"crc32c"`
	ETag           string                 `json:"etag"`
}

// GCSObject is the part of a notification the pipeline uses.
type GCSObject struct {
	Bucket   string // The name of the GCS bucket.
	Name     string // The name of the object.
	MIMEType string // The MIME type of the object (e.g., "video/mp4").
}

// ParseGCSNotification decodes a notification payload.
func ParseGCSNotification(data []byte) (*GCSObject, error) {
	var n GCSPubSubNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode storage notification: %w", err)
	}
	if n.Name == "" {
		return nil, fmt.Errorf("storage notification has no object name")
	}
	return &GCSObject{Bucket: n.Bucket, Name: n.Name, MIMEType: n.ContentType}, nil
}
