package pdftext

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexai-study/lexai-retrieval/internal/errs"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		meta, filename, want string
	}{
		{"Master Services Agreement", "msa.pdf", "Master Services Agreement"},
		{"", "residential_lease-2024.pdf", "residential lease 2024"},
		{"", "NDA.PDF", "NDA"},
		{"", "/uploads/u1/terms__of--use.pdf", "terms of use"},
		{"", "notes.txt", "notes.txt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Title(tt.meta, tt.filename), "Title(%q, %q)", tt.meta, tt.filename)
	}
}

func TestExtractFile_TwoPageLease(t *testing.T) {
	path := filepath.Join("testdata", "lease.pdf")
	info, err := os.Stat(path)
	require.NoError(t, err)

	doc, err := ExtractFile(path)
	require.NoError(t, err)

	assert.Equal(t, "The tenant shall pay rent on the first day of each month.\n\n"+
		"Either party may terminate this lease with sixty days notice.", doc.Text)
	assert.Equal(t, "lease.pdf", doc.Info.Filename)
	assert.Equal(t, "Residential Lease", doc.Info.Title)
	assert.Equal(t, "Acme Property", doc.Info.Author)
	assert.Equal(t, 2, doc.Info.PageCount)
	assert.Equal(t, info.Size(), doc.FileSize)
}

func TestExtract_RejectsNonPDF(t *testing.T) {
	_, err := ExtractBytes([]byte("this is not a pdf"), "fake.pdf")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Extraction))

	_, err = ExtractBytes(nil, "empty.pdf")
	assert.True(t, errs.Is(err, errs.Extraction))
}

func TestExtractFile_Missing(t *testing.T) {
	_, err := ExtractFile(filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Extraction))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
