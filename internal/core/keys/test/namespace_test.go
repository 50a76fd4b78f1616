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

package keys_test

import (
	"errors"
	"regexp"
	"testing"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/keys"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetKeyIsDeterministic(t *testing.T) {
	base := keys.BasePrefix("U-1", "Acme Corp", "Tower #2", "2024-05-01T09-20-30-123Z")
	assert.Equal(t, "tenant/u-1/acme_corp/tower__2/report_2024-05-01T09-20-30-123Z", base)

	for _, suffix := range []string{keys.ReportFile, keys.ViewerFile, "extracted_frames/frame_1.000.jpg"} {
		assert.Equal(t, keys.AssetKey(base, suffix), keys.AssetKey(base, suffix))
	}
	assert.Equal(t, base+"/daily_report.json", keys.ReportKey(base))
	assert.Equal(t, base+"/extracted_frames/frame_1.000.jpg", keys.FrameKey(base, "frame_1.000.jpg"))
	assert.Equal(t, base+"/source_video.mp4", keys.SourceVideoKey(base, "MP4"))
}

func TestEscape(t *testing.T) {
	cases := map[string]string{
		"Acme":          "acme",
		"  North Wing ": "north_wing",
		"a/b\\c":        "a_b_c",
		"ünïcode":       "__n__code",
		"":              "_",
		"..":            "__",
		"site-4.b_x":    "site-4.b_x",
	}
	for in, want := range cases {
		assert.Equal(t, want, keys.Escape(in), in)
	}
	// Escaping is idempotent.
	for _, want := range cases {
		assert.Equal(t, want, keys.Escape(want))
	}
}

func TestParseBaseRoundTripsEscapedForm(t *testing.T) {
	base := keys.BasePrefix("u-1", "Acme Corp", "Tower", "2024-05-01T09-20-30-123Z")

	parsed, err := keys.ParseBase(keys.FrameKey(base, "frame_2.500.jpg"))
	require.NoError(t, err)
	assert.Equal(t, keys.Base{
		TenantID:   "u-1",
		Customer:   "acme_corp",
		Project:    "tower",
		InstanceID: "2024-05-01T09-20-30-123Z",
	}, parsed)
	assert.Equal(t, base, parsed.Prefix())
}

func TestParseBaseRejectsForeignKeys(t *testing.T) {
	for _, key := range []string{
		"",
		"users/u-1/acme/tower/report_x/daily_report.json",
		"tenant/u-1/acme/tower",
		"tenant/u-1/acme/tower/folder_x",
		"tenant/u-1/Acme/tower/report_x",
		"tenant/u-1/acme/tower/report_",
	} {
		_, err := keys.ParseBase(key)
		var parseErr *model.ParseError
		assert.True(t, errors.As(err, &parseErr), key)
	}
}

func TestReportKeyShape(t *testing.T) {
	shape := regexp.MustCompile(`^tenant/[^/]+/[^/]+/[^/]+/report_[^/]+/daily_report\.json$`)
	assert.Regexp(t, shape, keys.ReportKey(keys.BasePrefix("t", "c", "p", "i")))
}

func TestParseUpload(t *testing.T) {
	tenant, customer, project, file, err := keys.ParseUpload("tenant/u-1/acme/tower/uploads/walk.mp4")
	require.NoError(t, err)
	assert.Equal(t, []string{"u-1", "acme", "tower", "walk.mp4"}, []string{tenant, customer, project, file})

	_, _, _, _, err = keys.ParseUpload("tenant/u-1/acme/tower/report_x/daily_report.json")
	assert.Error(t, err)
}
