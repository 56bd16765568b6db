// Copyright 2026 The Matrixbot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// markdown renders the Markdown subset Matrix clients display: GFM
// tables, strikethrough and autolinks. Raw HTML in the source is
// dropped.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// renderMarkdown returns source as HTML. A single paragraph loses its
// <p> wrapper so one-line messages render inline.
func renderMarkdown(source string) (string, error) {
	var buffer bytes.Buffer
	if err := markdown.Convert([]byte(source), &buffer); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	rendered := strings.TrimSpace(buffer.String())
	if strings.Count(rendered, "<p>") == 1 && strings.HasPrefix(rendered, "<p>") && strings.HasSuffix(rendered, "</p>") {
		rendered = strings.TrimSuffix(strings.TrimPrefix(rendered, "<p>"), "</p>")
	}
	return rendered, nil
}
