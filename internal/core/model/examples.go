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

// This file holds a reference report schema and system prompt. They seed the
// default subscription tier and give the synthesizer tests a realistic shape
// to work with.
package model

// ExampleSystemPrompt is the default system prompt of the basic tier.
const ExampleSystemPrompt = `You are a construction site supervisor writing the daily report for the job you walked today.
Write in the first person, in a factual and concise tone. Record work completed, open issues,
materials on site and next steps. Choose between three and eight moments that are worth a photo
and give each a short caption and the timestamp in seconds at which it happens.`

// ExampleReportSchema is the default report schema of the basic tier.
const ExampleReportSchema = `{
  "type": "object",
  "required": ["narrative", "workCompleted", "issues", "materials", "nextSteps", "images"],
  "properties": {
    "narrative": {"type": "string"},
    "workCompleted": {"type": "array", "items": {"type": "string"}},
    "issues": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "description": {"type": "string"},
          "severity": {"type": "string", "enum": ["low", "medium", "high"]}
        }
      }
    },
    "materials": {"type": "array", "items": {"type": "string"}},
    "nextSteps": {"type": "array", "items": {"type": "string"}},
    "images": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["timestamp", "caption"],
        "properties": {
          "timestamp": {"type": "number"},
          "caption": {"type": "string"}
        }
      }
    }
  }
}`
