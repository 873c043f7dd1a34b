package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-mhc/internal/duckdb"
)

const (
	wildTypeXmer = "DEVLGEPSQDILVIDQTRLEATISPET"
	mutatedXmer  = "DEVLGEPSQDILVTDQTRLEATISPET"
)

// execute runs the root command in a fresh home directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

type testInputs struct {
	patients, candidates, predictions string
}

func writeInputs(t *testing.T) testInputs {
	t.Helper()
	dir := t.TempDir()

	predictions := []string{"class\tsequence\tallele\tposition\tpeptide\trank\taffinity"}
	ranks := map[string]float64{
		"HLA-A*02:01": 0.4,
		"HLA-A*24:02": 1,
		"HLA-B*15:01": 1,
		"HLA-B*44:02": 1,
		"HLA-C*05:01": 1,
		"HLA-C*07:01": 1,
	}
	for allele, rank := range ranks {
		predictions = append(predictions,
			fmt.Sprintf("I\t%s\t%s\t13\tVTDQTRLEA\t%g\t%g", mutatedXmer, allele, rank, rank*1000))
	}
	predictions = append(predictions,
		fmt.Sprintf("I\t%s\tHLA-A*02:01\t13\tVIDQTRLEA\t10\t9000", wildTypeXmer))

	return testInputs{
		patients: writeFile(t, dir, "patients.tsv",
			"identifier\tmhcIAlleles\ttumorType\tisRnaAvailable",
			"Ptcl_01\tHLA-A*24:02,HLA-A*02:01,HLA-B*15:01,HLA-B*44:02,HLA-C*05:01,HLA-C*07:01\tHNSC\ttrue",
		),
		candidates: writeFile(t, dir, "candidates.tsv",
			"identifier\tpatientIdentifier\tgene\twildTypeXmer\tmutatedXmer",
			"N1\tPtcl_01\tBRCA2\t"+wildTypeXmer+"\t"+mutatedXmer,
		),
		predictions: writeFile(t, dir, "predictions.tsv", predictions...),
	}
}

func (in testInputs) args(extra ...string) []string {
	return append([]string{
		"annotate",
		"--patients", in.patients,
		"--candidates", in.candidates,
		"--predictions", in.predictions,
	}, extra...)
}

func TestAnnotateCmd(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	in := writeInputs(t)

	out, err := execute(t, in.args()...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 19)
	assert.Equal(t, "patientIdentifier\tcandidateIdentifier\tname\tvalue", lines[0])
	assert.Contains(t, lines, "Ptcl_01\tN1\tPHBR_I\t0.8")
	assert.Contains(t, lines, "Ptcl_01\tN1\tBest_rank_MHCI_score_allele\tHLA-A*02:01")
	assert.Contains(t, lines, "Ptcl_01\tN1\tGenerator_rate_CDN\t1")
	assert.Contains(t, lines, "Ptcl_01\tN1\tGenerator_rate_ADN\t1")
	assert.Contains(t, lines, "Ptcl_01\tN1\tPHBR_II\tNA")
}

func TestAnnotateCmd_Thresholds(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	in := writeInputs(t)

	out, err := execute(t, in.args("--mhc1-binder-threshold", "1")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Ptcl_01\tN1\tGenerator_rate_CDN\t6\n")
	assert.Contains(t, out, "Ptcl_01\tN1\tGenerator_rate_ADN\t1\n")

	out, err = execute(t, in.args("--mhc1-alternative-threshold", "0.1")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Ptcl_01\tN1\tGenerator_rate_CDN\t1\n")
	assert.Contains(t, out, "Ptcl_01\tN1\tGenerator_rate_ADN\t0\n")

	t.Setenv("VIBE_MHC_THRESHOLDS_MHC1_BINDER", "1")
	out, err = execute(t, in.args()...)
	require.NoError(t, err)
	assert.Contains(t, out, "Ptcl_01\tN1\tGenerator_rate_CDN\t6\n")

	t.Setenv("VIBE_MHC_THRESHOLDS_MHC1_BINDER", "0.1")
	out, err = execute(t, in.args()...)
	require.NoError(t, err)
	assert.Contains(t, out, "Ptcl_01\tN1\tGenerator_rate_CDN\t0\n")
}

func TestAnnotateCmd_WideWithStore(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	in := writeInputs(t)
	dir := t.TempDir()
	outPath := filepath.Join(dir, "annotations.tsv")
	storePath := filepath.Join(dir, "results.duckdb")
	cacheDir := filepath.Join(dir, "cache")

	for i := 0; i < 2; i++ {
		_, err := execute(t, in.args(
			"--output-format", "wide",
			"-o", outPath,
			"--store", storePath,
			"--cache", cacheDir,
		)...)
		require.NoError(t, err)
	}

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	header := strings.Split(lines[0], "\t")
	row := strings.Split(lines[1], "\t")
	require.Len(t, header, 5+18)
	require.Len(t, row, len(header))
	assert.Equal(t, "PHBR_I", header[5])
	assert.Equal(t, "0.8", row[5])

	assert.FileExists(t, filepath.Join(cacheDir, "predictions.gob"))

	store, err := duckdb.Open(storePath)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)

	anns, err := store.LookupCandidate(runs[1].ID, "N1")
	require.NoError(t, err)
	require.Len(t, anns, 18)
	assert.Equal(t, "PHBR_I", anns[0].Name)
	assert.Equal(t, "0.8", anns[0].Value)
}

func TestAnnotateCmd_Errors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	in := writeInputs(t)

	_, err := execute(t, in.args("--organism", "zebrafish")...)
	assert.ErrorContains(t, err, "unsupported organism zebrafish")

	_, err = execute(t, in.args("--output-format", "vcf")...)
	var ue *usageError
	assert.ErrorAs(t, err, &ue)

	_, err = execute(t, "annotate", "--patients", in.patients)
	assert.ErrorContains(t, err, "required flag(s)")
}

func TestRun_ExitCodes(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	in := writeInputs(t)
	viper.Reset()
	t.Cleanup(viper.Reset)

	assert.Equal(t, ExitUsage, run([]string{"annotate", "--no-such-flag"}))
	assert.Equal(t, ExitUsage, run([]string{"version", "extra"}))
	assert.Equal(t, ExitError, run([]string{"genotype", "--patients", in.candidates}))
}

func TestGenotypeCmd(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	in := writeInputs(t)

	out, err := execute(t, "genotype", "--patients", in.patients)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Equal(t, "patientIdentifier\tclass\tmolecule\tgene\tzygosity\talleles\tisoforms", lines[0])
	assert.Contains(t, lines, "Ptcl_01\tI\t-\tA\tHETEROZYGOUS\tHLA-A*24:02,HLA-A*02:01\t-")
	assert.Contains(t, lines, "Ptcl_01\tII\tDR\tDRB1\tLOSS\t-\t-")

	out, err = execute(t, "genotype", "--patients", in.patients, "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "- identifier: Ptcl_01")
	assert.Contains(t, out, "zygosity: HETEROZYGOUS")
}

func TestGenotypeCmd_AlleleList(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	in := writeInputs(t)

	require.NoError(t, os.MkdirAll(filepath.Join(home, ".vibe-mhc"), 0755))
	writeFile(t, filepath.Join(home, ".vibe-mhc"), "Allelelist.txt",
		"# file: Allelelist.txt",
		"AlleleID,Allele",
		"HLA00001,A*01:01:01:01",
	)

	out, err := execute(t, "genotype", "--patients", in.patients)
	require.NoError(t, err)
	assert.Equal(t, "patientIdentifier\tclass\tmolecule\tgene\tzygosity\talleles\tisoforms\n", out)
}

func TestConfigCmd(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	out, err := execute(t, "config", "set", "organism", "mouse")
	require.NoError(t, err)
	assert.Contains(t, out, "Set organism = mouse")
	assert.FileExists(t, filepath.Join(home, ".vibe-mhc.yaml"))

	out, err = execute(t, "config", "get", "organism")
	require.NoError(t, err)
	assert.Equal(t, "mouse\n", out)

	out, err = execute(t, "config", "get", "thresholds.mhc2.binder")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = execute(t, "config", "get", "thresholds.mhc1.alternative")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	_, err = execute(t, "config", "get", "no.such.key")
	assert.ErrorContains(t, err, `key "no.such.key" is not set`)

	out, err = execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "organism: mouse")
}

func TestVersionCmd(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "vibe-mhc version dev (none) built unknown\n", out)
}

func TestDownloadCmd(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	body := "# file: Allelelist.txt\nAlleleID,Allele\nHLA00001,A*01:01:01:01\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	out, err := execute(t, "download", "--output", dir, "--url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Download complete!")

	data, err := os.ReadFile(filepath.Join(dir, "Allelelist.txt"))
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
	assert.NoFileExists(t, filepath.Join(dir, "Allelelist.txt.tmp"))

	out, err = execute(t, "download", "--output", dir, "--url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.bytes))
	}
}
