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

// ReportMetadata is stitched onto a report from the tenant profile once all
// frames are uploaded.
type ReportMetadata struct {
	GeneratedAt string      `json:"generatedAt"`
	Customer    string      `json:"customer"`
	Project     string      `json:"project"`
	PreparedBy  PreparedBy  `json:"preparedBy"`
	CompanyInfo CompanyInfo `json:"companyInfo"`
}

type PreparedBy struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CompanyInfo struct {
	Name    string  `json:"name"`
	Address Address `json:"address"`
	Phone   string  `json:"phone"`
	Website string  `json:"website"`
}

type Address struct {
	Street string `json:"street"`
	Unit   string `json:"unit"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// AssetURLs lists the URLs of the other artifacts of the same report.
type AssetURLs struct {
	BaseURL          string `json:"baseUrl"`
	LogoURL          string `json:"logoUrl"`
	ViewerURL        string `json:"viewerUrl"`
	TranscriptionURL string `json:"transcriptionUrl"`
	VideoURL         string `json:"videoUrl"`
}
