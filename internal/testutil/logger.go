// Package testutil provides shared test helpers.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/lmittmann/tint"
)

// NewTestLogger returns a debug logger that writes to t.Log, so output
// shows only on failure or with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(tint.NewHandler(testWriter{t}, &tint.Options{
		Level:      slog.LevelDebug,
		NoColor:    true,
		TimeFormat: "15:04:05.000",
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// WriteFile writes content to name inside a fresh temp dir and returns its path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// CensusCSV is a small semicolon-delimited extract of the school census
// microdata, with the columns the default star layout uses.
const CensusCSV = `NU_ANO_CENSO;NO_REGIAO;NO_UF;NO_MUNICIPIO;TP_DEPENDENCIA;TP_LOCALIZACAO;IN_AGUA_POTAVEL;IN_ENERGIA_REDE_PUBLICA;IN_ESGOTO_REDE_PUBLICA;IN_INTERNET;IN_BIBLIOTECA;IN_LABORATORIO_INFORMATICA;QT_DOC_BAS;QT_MAT_BAS;QT_TUR_BAS
2023;Norte;Acre;Rio Branco;2;1;1;1;0;1;1;0;100;1200;40
2023;Norte;Acre;Rio Branco;3;1;1;1;1;1;0;0;50;800;25
2023;Norte;Acre;Xapuri;2;2;0;1;0;;0;0;12;130;6
2023;Nordeste;Bahia;Salvador;4;1;1;1;1;1;1;1;75;900;30
2023;Nordeste;Bahia;Salvador;2;1;1;1;1;1;1;0;x;640;22
`
