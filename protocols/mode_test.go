package protocols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverDefault(t *testing.T) {
	r := DefaultResolver()
	cases := []struct {
		path string
		want TransferMode
	}{
		{"/data/report.csv", Text},
		{"/data/REPORT.CSV", Text},
		{"notes.txt", Text},
		{`C:\exports\feed.xml`, Text},
		{"/srv/www/.htaccess", Text},
		{"/src/Makefile", Text},
		{"/data/in.bin", Binary},
		{"/data/archive.tar.gz", Binary},
		{"/data/photo.JPG", Binary},
		{"/data/noext", Binary},
		{"/data/trailingdot.", Binary},
		{"/data/dir/", Binary},
		{"", Binary},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, r.Resolve(tc.path))
		})
	}
}

func TestResolverIsDeterministic(t *testing.T) {
	r := DefaultResolver()
	for i := 0; i < 5; i++ {
		assert.Equal(t, Text, r.Resolve("/a/b/c.json"))
		assert.Equal(t, Binary, r.Resolve("/a/b/c.png"))
	}
}

func TestNewResolverCustomExtensions(t *testing.T) {
	r := NewResolver(".DAT", "edi", " ")
	assert.Equal(t, Text, r.Resolve("/x/batch.dat"))
	assert.Equal(t, Text, r.Resolve("/x/order.EDI"))
	assert.Equal(t, Binary, r.Resolve("/x/report.csv"))
	assert.Equal(t, Text, r.Resolve("/x/README"))
}

func TestNilResolverFallsBackToDefault(t *testing.T) {
	var r *Resolver
	assert.Equal(t, Text, r.Resolve("a.csv"))
}

func TestParseTransferMode(t *testing.T) {
	for in, want := range map[string]TransferMode{
		"binary": Binary, "I": Binary, " bin ": Binary,
		"text": Text, "ASCII": Text, "a": Text,
	} {
		got, err := ParseTransferMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTransferMode("ebcdic")
	assert.Error(t, err)
}

func TestTransferModeValid(t *testing.T) {
	assert.True(t, Binary.Valid())
	assert.True(t, Text.Valid())
	assert.False(t, TransferMode(0).Valid())
	assert.False(t, TransferMode(9).Valid())
	assert.Equal(t, "text", Text.String())
	assert.Equal(t, "TransferMode(9)", TransferMode(9).String())
}
