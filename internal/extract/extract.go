package extract

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	apperrs "github.com/askbase/askbase/internal/pkg/errors"
	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// SupportedExt reports whether a filename carries an extension the
// extractor can handle.
func SupportedExt(filename string) bool {
	switch normalizeExt(filename) {
	case ".txt", ".md", ".pdf":
		return true
	}
	return false
}

// Text pulls plain text out of an uploaded file based on its extension.
func Text(filename string, data []byte) (string, error) {
	switch normalizeExt(filename) {
	case ".txt":
		return string(data), nil
	case ".md":
		return markdownText(data), nil
	case ".pdf":
		return pdfText(data)
	default:
		return "", fmt.Errorf("%w: %s", apperrs.ErrUnsupportedFile, filepath.Ext(filename))
	}
}

func normalizeExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// markdownText walks the goldmark AST and collects text nodes and code
// block bodies, dropping markup.
func markdownText(data []byte) string {
	md := goldmark.New()
	reader := text.NewReader(data)
	doc := md.Parser().Parse(reader)

	var parts []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.FencedCodeBlock:
			var sb strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				sb.Write(line.Value(reader.Source()))
			}
			if code := strings.TrimSpace(sb.String()); code != "" {
				parts = append(parts, code)
			}
		default:
			if txt := nodeText(node, reader.Source()); txt != "" {
				parts = append(parts, txt)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Type() == ast.TypeBlock || node.Type() == ast.TypeInline {
			if node.Kind() == ast.KindText {
				sb.Write(node.(*ast.Text).Segment.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

// pdfText recovers parser panics; the pdf library panics on some
// malformed inputs instead of returning an error.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	body, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}
