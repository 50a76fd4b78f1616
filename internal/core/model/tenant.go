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
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// ProfileRow is the flat persistence shape of a tenant profile, one column
// per field as stored in the profiles table.
type ProfileRow struct {
	UserID             string
	FullName           string
	Email              string
	Phone              string
	CompanyName        string
	CompanyStreet      string
	CompanyUnit        string
	CompanyCity        string
	CompanyState       string
	CompanyZip         string
	CompanyPhone       string
	CompanyWebsite     string
	ConfigLogoFilename string
	SubscriptionLevel  string
}

// TierRow is the flat persistence shape of the per-subscription model and
// prompt configuration.
type TierRow struct {
	SubscriptionLevel       string
	WhisperModel            string
	ChatModel               string
	DailyReportSystemPrompt string
	ReportJSONSchema        string
	UseGemini               bool
}

// TenantConfig is everything the pipeline needs to know about a tenant.
type TenantConfig struct {
	TenantID           string          `json:"tenantId"`
	ChatModel          string          `json:"chatModel"`
	TranscriptionModel string          `json:"transcriptionModel"`
	SystemPrompt       string          `json:"systemPrompt"`
	ReportSchema       json.RawMessage `json:"reportSchema,omitempty"`
	LogoRef            string          `json:"logoRef"`
	PreparerName       string          `json:"preparerName"`
	PreparerEmail      string          `json:"preparerEmail"`
	PreparerPhone      string          `json:"preparerPhone"`
	CompanyName        string          `json:"companyName"`
	CompanyAddress     Address         `json:"companyAddress"`
	CompanyPhone       string          `json:"companyPhone"`
	CompanyWebsite     string          `json:"companyWebsite"`
	SubscriptionLevel  string          `json:"subscriptionLevel"`
	UseVideoSynthesis  bool            `json:"useVideoSynthesis"`
}

// TenantConfigFromRow reshapes the flat profile and tier rows into the nested
// config. It does no I/O.
func TenantConfigFromRow(p ProfileRow, t TierRow) TenantConfig {
	level := strings.TrimSpace(p.SubscriptionLevel)
	if level == "" {
		level = strings.TrimSpace(t.SubscriptionLevel)
	}
	return TenantConfig{
		TenantID:           strings.TrimSpace(p.UserID),
		ChatModel:          strings.TrimSpace(t.ChatModel),
		TranscriptionModel: strings.TrimSpace(t.WhisperModel),
		SystemPrompt:       strings.TrimSpace(t.DailyReportSystemPrompt),
		ReportSchema:       NormalizeSchema(t.ReportJSONSchema),
		LogoRef:            strings.TrimSpace(p.ConfigLogoFilename),
		PreparerName:       strings.TrimSpace(p.FullName),
		PreparerEmail:      strings.TrimSpace(p.Email),
		PreparerPhone:      strings.TrimSpace(p.Phone),
		CompanyName:        strings.TrimSpace(p.CompanyName),
		CompanyAddress: Address{
			Street: strings.TrimSpace(p.CompanyStreet),
			Unit:   strings.TrimSpace(p.CompanyUnit),
			City:   strings.TrimSpace(p.CompanyCity),
			State:  strings.TrimSpace(p.CompanyState),
			Zip:    strings.TrimSpace(p.CompanyZip),
		},
		CompanyPhone:      strings.TrimSpace(p.CompanyPhone),
		CompanyWebsite:    strings.TrimSpace(p.CompanyWebsite),
		SubscriptionLevel: level,
		UseVideoSynthesis: t.UseGemini,
	}
}

// NormalizeSchema returns the schema as a JSON object. The stored value is
// sometimes a JSON string that itself contains the schema; that extra level
// of encoding is removed. Anything that is not an object yields nil.
func NormalizeSchema(raw string) json.RawMessage {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 {
		return nil
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil
		}
		data = bytes.TrimSpace([]byte(inner))
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil
	}
	return json.RawMessage(data)
}

// Validate checks the fields the pipeline cannot start without.
func (c *TenantConfig) Validate() error {
	var missing []string
	if c.ChatModel == "" {
		missing = append(missing, "chatModel")
	}
	if c.SystemPrompt == "" {
		missing = append(missing, "systemPrompt")
	}
	if len(c.ReportSchema) == 0 {
		missing = append(missing, "reportSchema")
	}
	if len(missing) > 0 {
		return &ConfigurationError{TenantID: c.TenantID, Missing: missing}
	}
	return nil
}

// ValidateIdentity checks the fields needed to stitch report metadata.
func (c *TenantConfig) ValidateIdentity() error {
	var missing []string
	if c.PreparerName == "" {
		missing = append(missing, "preparerName")
	}
	if c.CompanyName == "" {
		missing = append(missing, "companyName")
	}
	if len(missing) > 0 {
		return &IncompleteProfileError{TenantID: c.TenantID, Missing: missing}
	}
	return nil
}

// Metadata builds the reportMetadata block for one report.
func (c *TenantConfig) Metadata(customer, project string, generatedAt time.Time) ReportMetadata {
	return ReportMetadata{
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339Nano),
		Customer:    customer,
		Project:     project,
		PreparedBy: PreparedBy{
			Name:  c.PreparerName,
			Email: c.PreparerEmail,
			Phone: c.PreparerPhone,
		},
		CompanyInfo: CompanyInfo{
			Name:    c.CompanyName,
			Address: c.CompanyAddress,
			Phone:   c.CompanyPhone,
			Website: c.CompanyWebsite,
		},
	}
}
