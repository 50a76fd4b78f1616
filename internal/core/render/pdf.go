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

package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const (
	DefaultChromePath = "chromium"
	DefaultPDFTimeout = 60 * time.Second

	pdfMagic = "%PDF"
)

// PDFRenderer prints a page reachable at a URL to PDF.
type PDFRenderer interface {
	RenderURL(ctx context.Context, url string) ([]byte, error)
}

// PDF prints pages with headless Chromium. Page size and margins come from
// the @page rule of the viewer.
type PDF struct {
	ChromePath string
	Timeout    time.Duration
	WaitDelay  time.Duration
	// VirtualTimeBudget lets scripts and images settle before printing.
	VirtualTimeBudget time.Duration
}

func NewPDF(chromePath string, timeout time.Duration) *PDF {
	if chromePath == "" {
		chromePath = DefaultChromePath
	}
	if timeout <= 0 {
		timeout = DefaultPDFTimeout
	}
	return &PDF{
		ChromePath:        chromePath,
		Timeout:           timeout,
		WaitDelay:         5 * time.Second,
		VirtualTimeBudget: 10 * time.Second,
	}
}

// Args returns the chromium command line for printing url to out.
func (p *PDF) Args(url, out string) []string {
	args := []string{
		"--headless",
		"--disable-gpu",
		"--no-sandbox",
		"--hide-scrollbars",
		"--no-pdf-header-footer",
		"--window-size=1200,800",
	}
	if p.VirtualTimeBudget > 0 {
		args = append(args, fmt.Sprintf("--virtual-time-budget=%d", p.VirtualTimeBudget.Milliseconds()))
	}
	return append(args, "--print-to-pdf="+out, url)
}

// RenderURL prints url and returns the PDF bytes.
func (p *PDF) RenderURL(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("pdf: empty url")
	}
	dir, err := os.MkdirTemp("", "report-pdf-")
	if err != nil {
		return nil, fmt.Errorf("pdf: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "report.pdf")

	runCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.ChromePath, p.Args(url, out)...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = p.WaitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("pdf: %s: %w", p.ChromePath, ctxErr)
		}
		return nil, fmt.Errorf("pdf: %s: %w: %s", p.ChromePath, err, lastLine(stderr.String()))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("pdf: no output: %w", err)
	}
	if !bytes.HasPrefix(data, []byte(pdfMagic)) {
		return nil, errors.New("pdf: output is not a PDF document")
	}
	return data, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
