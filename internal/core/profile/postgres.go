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

package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
)

const tenantConfigQuery = `
SELECT p.id, p.full_name, p.email, p.phone,
       p.company_name, p.company_street, p.company_unit, p.company_city,
       p.company_state, p.company_zip, p.company_phone, p.company_website,
       p.config_logo_filename, p.subscription_level,
       c.subscription_level, c.whisper_model, c.chat_model,
       c.daily_report_system_prompt, c.report_json_schema::text, c.use_gemini
FROM profiles p
LEFT JOIN config c ON c.subscription_level = COALESCE(NULLIF(p.subscription_level, ''), $2)
WHERE p.id = $1`

const listTiersQuery = `SELECT subscription_level FROM config ORDER BY subscription_level`

// Postgres reads tenant configuration from the profiles and config tables.
type Postgres struct {
	DB *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{DB: db}
}

func (s *Postgres) GetTenantConfig(ctx context.Context, tenantID string) (*model.TenantConfig, error) {
	var p model.ProfileRow
	var fullName, email, phone, company, street, unit, city, state, zip sql.NullString
	var companyPhone, website, logo, profileLevel sql.NullString
	var tierLevel, whisper, chat, prompt, schema sql.NullString
	var useGemini sql.NullBool
	err := s.DB.QueryRowContext(ctx, tenantConfigQuery, tenantID, DefaultTier).Scan(
		&p.UserID, &fullName, &email, &phone,
		&company, &street, &unit, &city,
		&state, &zip, &companyPhone, &website,
		&logo, &profileLevel,
		&tierLevel, &whisper, &chat,
		&prompt, &schema, &useGemini,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.ConfigurationError{TenantID: tenantID, Missing: []string{"profile"}}
	}
	if err != nil {
		return nil, &model.StoreUnavailableError{Op: "get tenant config", Key: tenantID, Err: err}
	}

	p.FullName = fullName.String
	p.Email = email.String
	p.Phone = phone.String
	p.CompanyName = company.String
	p.CompanyStreet = street.String
	p.CompanyUnit = unit.String
	p.CompanyCity = city.String
	p.CompanyState = state.String
	p.CompanyZip = zip.String
	p.CompanyPhone = companyPhone.String
	p.CompanyWebsite = website.String
	p.ConfigLogoFilename = logo.String
	p.SubscriptionLevel = profileLevel.String

	if !tierLevel.Valid {
		level := profileLevel.String
		if level == "" {
			level = DefaultTier
		}
		return nil, &model.ConfigurationError{
			TenantID: tenantID,
			Missing:  []string{"tier"},
			Err:      fmt.Errorf("no config row for subscription level %q", level),
		}
	}
	t := model.TierRow{
		SubscriptionLevel:       tierLevel.String,
		WhisperModel:            whisper.String,
		ChatModel:               chat.String,
		DailyReportSystemPrompt: prompt.String,
		ReportJSONSchema:        schema.String,
		UseGemini:               useGemini.Bool,
	}
	cfg := model.TenantConfigFromRow(p, t)
	return &cfg, nil
}

func (s *Postgres) ListTiers(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, listTiersQuery)
	if err != nil {
		return nil, &model.StoreUnavailableError{Op: "list tiers", Err: err}
	}
	defer rows.Close()
	var tiers []string
	for rows.Next() {
		var level string
		if err := rows.Scan(&level); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		tiers = append(tiers, level)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StoreUnavailableError{Op: "list tiers", Err: err}
	}
	return tiers, nil
}
