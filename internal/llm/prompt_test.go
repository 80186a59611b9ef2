package llm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/constants"
)

func TestPromptForCustomIsVerbatim(t *testing.T) {
	custom := "Extract invoice_number, vendor and total"
	assert.Equal(t, custom, PromptFor(constants.DocumentCustom, custom))
	assert.Equal(t, custom, PromptFor(constants.DocumentLoan, custom))
}

func TestPromptForBuiltIns(t *testing.T) {
	loan := PromptFor(constants.DocumentLoan, "   ")
	for _, name := range constants.SchemaFor(constants.DocumentLoan).Names() {
		assert.Contains(t, loan, "- "+name)
	}
	assert.Contains(t, loan, "witness_details (array)")
	assert.Contains(t, loan, "YYYY-MM-DD")
	assert.Contains(t, loan, "Do not translate")

	prop := PromptFor(constants.DocumentProperty, "")
	assert.Contains(t, prop, "- property_owner")
	assert.NotContains(t, prop, "borrower_name")

	table := PromptFor(constants.DocumentTable, "")
	assert.Contains(t, table, `"columns"`)

	generic := PromptFor(constants.DocumentCustom, "")
	assert.Contains(t, generic, "- description")
}

func TestLanguagePrompts(t *testing.T) {
	assert.True(t, strings.HasSuffix(DetectLanguagePrompt("नमस्ते"), "Text: नमस्ते"))
	tp := TranslatePrompt("नमस्ते", "hi")
	assert.Contains(t, tp, "from hi to English")
	assert.True(t, strings.HasSuffix(tp, "Text: नमस्ते"))
}

func TestReadImage(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "page.png")
	require.NoError(t, os.WriteFile(p, []byte{0x89, 'P', 'N', 'G'}, 0o644))

	img, err := ReadImage(p, "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	b, err := img.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, b)
	assert.True(t, strings.HasPrefix(DataURL(*img), "data:image/png;base64,"))

	empty := filepath.Join(dir, "empty.jpg")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = ReadImage(empty, "")
	assert.Error(t, err)
}
