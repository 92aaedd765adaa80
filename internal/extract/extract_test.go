package extract

import (
	"testing"

	apperrs "github.com/askbase/askbase/internal/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestSupportedExt(t *testing.T) {
	require.True(t, SupportedExt("notes.txt"))
	require.True(t, SupportedExt("README.MD"))
	require.True(t, SupportedExt("handbook.pdf"))
	require.False(t, SupportedExt("report.docx"))
	require.False(t, SupportedExt("report"))
}

func TestTextPlain(t *testing.T) {
	out, err := Text("notes.txt", []byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, "hello world", out)
}

func TestTextMarkdownDropsMarkup(t *testing.T) {
	src := "# Policy\n\nSmoking is **not allowed** indoors.\n\n```go\nfmt.Println(\"x\")\n```\n"
	out, err := Text("policy.md", []byte(src))
	require.NoError(t, err)
	require.Contains(t, out, "Policy")
	require.Contains(t, out, "Smoking is not allowed indoors.")
	require.Contains(t, out, `fmt.Println("x")`)
	require.NotContains(t, out, "**")
	require.NotContains(t, out, "```")
}

func TestTextUnsupported(t *testing.T) {
	_, err := Text("report.docx", []byte("x"))
	require.ErrorIs(t, err, apperrs.ErrUnsupportedFile)
}

func TestTextBrokenPDF(t *testing.T) {
	_, err := Text("broken.pdf", []byte("not a pdf"))
	require.Error(t, err)
}
