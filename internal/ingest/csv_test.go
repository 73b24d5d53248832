package ingest

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/leapstack-labs/leapstar/internal/testutil"
)

func TestCSVSource_LoadCensus(t *testing.T) {
	path := testutil.WriteFile(t, "censo.csv", testutil.CensusCSV)

	ds, err := (&CSVSource{Path: path}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, 15, ds.Width())

	uf, err := ds.Column("NO_UF")
	require.NoError(t, err)
	assert.Equal(t, []any{"Acre", "Acre", "Acre", "Bahia", "Bahia"}, uf)

	internet, err := ds.Column("IN_INTERNET")
	require.NoError(t, err)
	assert.Equal(t, "", internet[2], "empty cells stay empty")
}

func TestCSVSource_Columns(t *testing.T) {
	path := testutil.WriteFile(t, "censo.csv", testutil.CensusCSV)

	ds, err := (&CSVSource{Path: path, Columns: []string{"QT_DOC_BAS", "NO_MUNICIPIO"}}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"QT_DOC_BAS", "NO_MUNICIPIO"}, ds.Names())
	assert.Equal(t, []any{"100", "Rio Branco"}, ds.Row(0))

	_, err = (&CSVSource{Path: path, Columns: []string{"QT_PROF"}}).Load(context.Background())
	assert.ErrorContains(t, err, "column QT_PROF not found")
}

func TestCSVSource_Latin1(t *testing.T) {
	var buf bytes.Buffer
	w := charmap.ISO8859_1.NewEncoder().Writer(&buf)
	_, err := w.Write([]byte("NO_UF,NO_MUNICIPIO\nParaná,Foz do Iguaçu\nSão Paulo,Jundiaí\n"))
	require.NoError(t, err)
	path := testutil.WriteFile(t, "latin1.csv", buf.String())

	ds, err := (&CSVSource{Path: path, Encoding: "latin1"}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Paraná", "Foz do Iguaçu"}, {"São Paulo", "Jundiaí"}}, ds.Rows())
}

func TestCSVSource_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		src     CSVSource
		wantErr string
	}{
		{name: "empty file", content: "", wantErr: "file is empty"},
		{name: "ragged row", content: "A;B\n1;2\n3\n", wantErr: "wrong number of fields"},
		{name: "duplicate header", content: "A,A\n1,2\n", wantErr: "duplicate header column A"},
		{name: "bad encoding", content: "A\n1\n", src: CSVSource{Encoding: "ebcdic"}, wantErr: "unsupported encoding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := tt.src
			src.Path = testutil.WriteFile(t, "in.csv", tt.content)
			_, err := src.Load(context.Background())
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := (&CSVSource{Path: "/does/not/exist.csv"}).Load(context.Background())
	assert.Error(t, err)
}

func TestCSVSource_BOMAndDelimiter(t *testing.T) {
	path := testutil.WriteFile(t, "bom.csv", "\ufeffNO_UF|QT_DOC_BAS\nAcre| 10 \n")

	ds, err := (&CSVSource{Path: path}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"NO_UF", "QT_DOC_BAS"}, ds.Names())
	assert.Equal(t, []any{"Acre", " 10 "}, ds.Row(0), "values are kept verbatim")
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		sample string
		want   rune
	}{
		{"a;b;c\n1,5;2;3", ';'},
		{"a,b,c", ','},
		{"a\tb", '\t'},
		{"single", ','},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectDelimiter(tt.sample), tt.sample)
	}
}

func TestNew(t *testing.T) {
	src, err := New(Config{Path: "x.csv", Delimiter: ";"}, nil)
	require.NoError(t, err)
	assert.Equal(t, ';', src.(*CSVSource).Delimiter)
	assert.Equal(t, "csv:x.csv", src.Describe())

	_, err = New(Config{Kind: "csv"}, nil)
	assert.ErrorContains(t, err, "requires a path")
	_, err = New(Config{Path: "x.csv", Delimiter: ";;"}, nil)
	assert.ErrorContains(t, err, "single character")
	_, err = New(Config{Kind: "table", Table: "raw"}, nil)
	assert.ErrorContains(t, err, "connected target")
	_, err = New(Config{Kind: "parquet"}, nil)
	assert.ErrorContains(t, err, "unknown source kind")
}
