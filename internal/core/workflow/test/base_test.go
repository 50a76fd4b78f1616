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

// Package workflow_test exercises the report pipeline end to end against
// in-memory stand-ins for every external system: the memory blob store, the
// memory profile store, a fake transcoder and transcriber, a scripted
// generative model and a fake PDF printer. The real synthesizers, frame
// selection, viewer renderer and command chain run unchanged.
package workflow_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/cloud"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/blob"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/commands"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/profile"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/render"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/synthesis"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/workflow"
	"github.com/jaycherian/gcp-go-daily-report/internal/telemetry"
	test "github.com/jaycherian/gcp-go-daily-report/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const (
	tenantID = "tenant-1"
	customer = "Acme"
	project  = "Tower A"
	videoKey = "tenant/tenant-1/acme/tower_a/uploads/walkthrough.mp4"
	logoURL  = "https://cdn.example.com/logo.png"
)

var (
	logger = otelslog.NewLogger("cloud.google.com/media/tests/workflow")
	now    = time.Date(2024, 10, 11, 3, 4, 8, 672e6, time.UTC)
)

// TestMain installs the structured logger once for the package.
func TestMain(m *testing.M) {
	telemetry.SetupLogging()
	logger.Info("completed test setup")
	os.Exit(m.Run())
}

// reply is a model answer proposing one frame per timestamp.
func reply(timestamps ...float64) string {
	images := make([]string, 0, len(timestamps))
	for i, ts := range timestamps {
		images = append(images, fmt.Sprintf(`{"timestamp": %g, "caption": "View %d"}`, ts, i+1))
	}
	return `{
  "narrative": "Poured the east slab and stripped the forms.",
  "workCompleted": ["east slab pour"],
  "issues": [{"description": "Rebar exposed at grid C4", "severity": "medium"}],
  "materials": ["concrete"],
  "nextSteps": ["cure slab"],
  "images": [` + strings.Join(images, ", ") + `]
}`
}

type fakeIndexer struct {
	mu   sync.Mutex
	rows []*model.ReportIndexRow
	err  error
}

func (f *fakeIndexer) Insert(ctx context.Context, row *model.ReportIndexRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeIndexer) Rows() []*model.ReportIndexRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.ReportIndexRow(nil), f.rows...)
}

type failingViewer struct{}

func (failingViewer) Render(doc *model.ReportDocument, logoURL string) ([]byte, error) {
	return nil, test.ErrInjected
}

// fixture holds the stand-ins of one test.
type fixture struct {
	t           *testing.T
	blobs       *blob.Memory
	profiles    *profile.Memory
	transcoder  *test.FakeTranscoder
	transcriber *test.FakeTranscriber
	generator   *test.FakeGenerator
	pdf         *test.FakePDF
	indexer     *fakeIndexer
	viewer      render.ViewerRenderer
}

func newFixture(t *testing.T, modelReply string) *fixture {
	t.Helper()
	viewer, err := render.NewViewer()
	require.NoError(t, err)
	return &fixture{
		t:           t,
		blobs:       blob.NewMemory("https://storage.example.com/reports/"),
		profiles:    profile.NewMemory(profile.ExampleTenant(tenantID)),
		transcoder:  test.NewFakeTranscoder([]byte("ID3 fake mp3 audio")),
		transcriber: test.NewFakeTranscriber(test.SampleTranscript()),
		generator:   test.NewFakeGenerator(modelReply),
		pdf:         test.NewFakePDF(),
		indexer:     &fakeIndexer{},
		viewer:      viewer,
	}
}

func (f *fixture) pipeline() *workflow.ReportPipeline {
	m := cloud.NewQuotaAwareModel(nil, "default", f.generator, 0)
	return workflow.NewReportPipeline(workflow.Dependencies{
		Blobs:       f.blobs,
		Profiles:    f.profiles,
		Transcoder:  f.transcoder,
		Transcriber: f.transcriber,
		Synthesizers: []synthesis.Synthesizer{
			synthesis.NewTranscriptSynthesizer(m, nil),
			synthesis.NewVideoSynthesizer(m, nil),
		},
		Publisher: &commands.ViewerPublisher{
			Blobs:      f.blobs,
			Viewer:     f.viewer,
			PDF:        f.pdf,
			PresignTTL: time.Hour,
		},
		Indexer:        f.indexer,
		Clock:          func() time.Time { return now },
		PresignTTL:     time.Hour,
		FrameWorkers:   2,
		DefaultLogoURL: logoURL,
	})
}

func request() workflow.GenerateRequest {
	return workflow.GenerateRequest{
		TenantID: tenantID,
		Customer: customer,
		Project:  project,
		Video:    workflow.VideoRef{Key: videoKey},
	}
}

// published decodes the stored report at key.
func (f *fixture) published(key string) map[string]json.RawMessage {
	f.t.Helper()
	obj, ok := f.blobs.Object(key)
	require.True(f.t, ok, "no object at %s", key)
	var out map[string]json.RawMessage
	require.NoError(f.t, json.Unmarshal(obj.Data, &out))
	return out
}

func (f *fixture) keysContaining(part string) []string {
	var out []string
	for _, k := range f.blobs.Keys() {
		if strings.Contains(k, part) {
			out = append(out, k)
		}
	}
	return out
}
