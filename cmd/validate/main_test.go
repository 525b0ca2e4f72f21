package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureDir = "../../internal/domain/testdata"

func testOptions() options {
	return options{
		basinMap: filepath.Join(fixtureDir, "river_basins.json"),
		zone:     "Asia/Colombo",
		policy:   "first",
		ordering: "clock24",
	}
}

func TestRun_FixturePasses(t *testing.T) {
	var out bytes.Buffer
	code := run(&out, testOptions(), []string{filepath.Join(fixtureDir, "water_level_1716960600.json")})

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "Reports: 1, normalized records: 5")
	assert.Contains(t, out.String(), "All validations passed.")
}

func TestRun_MalformedReportFailsHeaderPhase(t *testing.T) {
	dir := t.TempDir()
	body := `[{"0":"Gauging Station","1":"Water Level at 6 am"},{"0":""},{"0":"Hanwella","1":"3.0"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "water_level_100.json"), []byte(body), 0o644))

	var out bytes.Buffer
	code := run(&out, testOptions(), []string{dir})

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "header rows differ in width")
	assert.Contains(t, out.String(), "Validation FAILED.")
}

func TestRun_StrictAmbiguityFailsClassification(t *testing.T) {
	dir := t.TempDir()
	body := `[{"0":"Gauging Station","1":"Water Level at 6 am","2":"Water Level at 9 am"},{"0":"","1":"","2":""},{"0":"Hanwella","1":"3.0","2":"3.5"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "water_level_100.json"), []byte(body), 0o644))

	opts := testOptions()
	opts.policy = "strict"

	var out bytes.Buffer
	code := run(&out, opts, []string{dir})

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "no rainfall column")
}

func TestCollectFiles_SkipsForeignNames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"water_level_2.json", "water_level_1.json", "notes.txt", "water_level_x.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o644))
	}

	files, err := collectFiles([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "water_level_1.json"),
		filepath.Join(dir, "water_level_2.json"),
	}, files)
}
