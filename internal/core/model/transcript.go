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
	"fmt"
	"sort"
	"strings"
)

// Word is one recognised token with its offsets in seconds from the start of
// the audio.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript is the time-aligned speech content of one video. It is produced
// once by a transcription client, persisted verbatim as transcription.json
// and consumed once by the synthesizer.
type Transcript struct {
	Text  string `json:"text"`
	Words []Word `json:"words"`
}

// Normalize orders the words by start offset. The sort is stable so words
// sharing an offset keep the order the service returned them in.
func (t *Transcript) Normalize() {
	sort.SliceStable(t.Words, func(i, j int) bool {
		return t.Words[i].Start < t.Words[j].Start
	})
	if strings.TrimSpace(t.Text) == "" && len(t.Words) > 0 {
		parts := make([]string, len(t.Words))
		for i, w := range t.Words {
			parts[i] = strings.TrimSpace(w.Word)
		}
		t.Text = strings.Join(parts, " ")
	}
}

// IsMonotonic reports whether word start offsets never decrease.
func (t *Transcript) IsMonotonic() bool {
	for i := 1; i < len(t.Words); i++ {
		if t.Words[i-1].Start > t.Words[i].Start {
			return false
		}
	}
	return true
}

// Validate fails with EmptyTranscriptError when there is nothing to report on.
func (t *Transcript) Validate() error {
	if t == nil || len(t.Words) == 0 {
		return &EmptyTranscriptError{}
	}
	return nil
}

// Render produces the rendering given to the language model: every word
// prefixed by its start offset, e.g. "[0.00] Good [0.42] morning".
func (t *Transcript) Render() string {
	var b strings.Builder
	for i, w := range t.Words {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "[%.2f] %s", w.Start, strings.TrimSpace(w.Word))
	}
	return b.String()
}
