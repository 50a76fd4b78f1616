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

package render_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-daily-report/internal/core/model"
	"github.com/jaycherian/gcp-go-daily-report/internal/core/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument(t *testing.T) *model.ReportDocument {
	doc, err := model.ParseReportDocument([]byte(`{
		"narrative": "Poured the east slab. </script><script>alert(1)</script>",
		"nextSteps": ["strip forms"]
	}`))
	require.NoError(t, err)
	require.NoError(t, doc.SetImages([]model.ImageRecord{
		{FileName: "frame_1.500.jpg", Caption: "slab", URL: "https://cdn.example.com/frame_1.500.jpg"},
	}))
	require.NoError(t, doc.AttachMetadata(model.ReportMetadata{
		Customer: "Acme", Project: "Tower A",
		PreparedBy: model.PreparedBy{Name: "Dana"},
	}, model.AssetURLs{BaseURL: "https://cdn.example.com/base/"}))
	return doc
}

func TestViewerEmbedsReport(t *testing.T) {
	v, err := render.NewViewer()
	require.NoError(t, err)

	html, err := v.Render(sampleDocument(t), "https://cdn.example.com/logo.png")
	require.NoError(t, err)
	page := string(html)

	assert.Contains(t, page, "<title>Daily Report - Acme - Tower A</title>")
	assert.Contains(t, page, `src="https://cdn.example.com/logo.png"`)
	assert.Contains(t, page, "frame_1.500.jpg")
	assert.Contains(t, page, "strip forms")
	// Report text cannot close the data script block.
	assert.Equal(t, 1, strings.Count(page, "</script>"))
}

func TestViewerWithoutLogo(t *testing.T) {
	v, err := render.NewViewer()
	require.NoError(t, err)

	doc, err := model.ParseReportDocument([]byte(`{"narrative":"quiet day"}`))
	require.NoError(t, err)
	html, err := v.Render(doc, "")
	require.NoError(t, err)

	assert.NotContains(t, string(html), `id="logo"`)
	assert.Contains(t, string(html), "<title>Daily Report</title>")
}

func fakeChrome(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chromium")
	script := "#!/bin/sh\nfor a in \"$@\"; do case \"$a\" in --print-to-pdf=*) out=\"${a#--print-to-pdf=}\";; esac; done\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestPDFRenderURL(t *testing.T) {
	p := render.NewPDF(fakeChrome(t, `printf '%%PDF-1.7 fake' > "$out"`), 5*time.Second)

	data, err := p.RenderURL(context.Background(), "https://example.com/viewer.html")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 fake", string(data))
}

func TestPDFArgs(t *testing.T) {
	p := render.NewPDF("", 0)
	args := p.Args("https://example.com/v.html", "/tmp/x.pdf")

	assert.Equal(t, render.DefaultChromePath, p.ChromePath)
	assert.Contains(t, args, "--headless")
	assert.Contains(t, args, "--print-to-pdf=/tmp/x.pdf")
	assert.Equal(t, "https://example.com/v.html", args[len(args)-1])
}

func TestPDFFailures(t *testing.T) {
	cases := map[string]string{
		"exit":      `echo "net::ERR_NAME_NOT_RESOLVED" >&2; exit 1`,
		"no output": `exit 0`,
		"not pdf":   `echo "<html>" > "$out"`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p := render.NewPDF(fakeChrome(t, body), 5*time.Second)
			_, err := p.RenderURL(context.Background(), "https://example.com/v.html")
			assert.Error(t, err)
		})
	}
}

func TestPDFTimeout(t *testing.T) {
	p := render.NewPDF(fakeChrome(t, `exec sleep 30`), 200*time.Millisecond)
	p.WaitDelay = 100 * time.Millisecond

	start := time.Now()
	_, err := p.RenderURL(context.Background(), "https://example.com/v.html")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestPDFEmptyURL(t *testing.T) {
	_, err := render.NewPDF("", 0).RenderURL(context.Background(), "")
	assert.Error(t, err)
}
