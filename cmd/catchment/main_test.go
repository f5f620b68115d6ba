package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("date,total_precipitation_sum,potential_evaporation_sum,streamflow,temperature_2m_mean\n")
	start := time.Date(2002, time.October, 1, 0, 0, 0, 0, time.UTC)
	for i := range 365 {
		fmt.Fprintf(&b, "%s,%d,0.9,1.1,%d\n", start.AddDate(0, 0, i).Format("2006-01-02"), i%4, 3+i%12)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "camelsgb_33024.csv"), []byte(b.String()), 0o600))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestListCommand(t *testing.T) {
	dir := writeDataDir(t)

	out, err := execute(t, "list", "--data-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "camelsgb_33024\tcamelsgb_33024.csv\n", out)
}

func TestNormalizeCommand(t *testing.T) {
	dir := writeDataDir(t)

	out, err := execute(t, "normalize", "camelsgb_33024.csv", "--data-dir", dir, "--end", "2002-10-02")
	require.NoError(t, err)
	assert.Equal(t, "date,P [mm/day],PET [mm/day],Q [mm/day],T [C],Date\n"+
		"2002-10-01,0,0.9,1.1,3,Oct-01-02\n"+
		"2002-10-02,1,0.9,1.1,4,Oct-02-02\n", out)
}

func TestNormalizeCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "normalize", "absent.csv", "--data-dir", t.TempDir())
	require.Error(t, err)
}

func TestSimulateCommand(t *testing.T) {
	dir := writeDataDir(t)

	out, err := execute(t, "simulate", "camelsgb_33024.csv", "--data-dir", dir, "--model", "hymod", "--spinup", "2")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 366)
	assert.Equal(t, "Date,date,Q [mm/day],ET [mm/day],Q_obs [mm/day],P [mm/day],Model", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Oct-01-02,2002-10-01,"))
	assert.True(t, strings.HasSuffix(lines[365], ",HyMod"))
}

func TestSimulateCommand_UnknownModel(t *testing.T) {
	dir := writeDataDir(t)

	_, err := execute(t, "simulate", "camelsgb_33024.csv", "--data-dir", dir, "--model", "gr4j")
	require.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	dir := writeDataDir(t)

	out, err := execute(t, "validate", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS camelsgb_33024.csv")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.csv"), []byte("date,streamflow\n"), 0o600))
	out, err = execute(t, "validate", "--data-dir", dir)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL broken.csv")
	assert.Contains(t, out, "schema:")
}

func TestNormalizeCommand_CustomColumns(t *testing.T) {
	dir := t.TempDir()
	content := "day,prcp,pet,q,tmean\n" +
		"2002-10-02,2,0.4,1.5,9\n" +
		"2002-10-01,1,0.3,1.4,8\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gauge.csv"), []byte(content), 0o600))

	_, err := execute(t, "normalize", "gauge.csv", "--data-dir", dir)
	require.Error(t, err, "default Caravan columns are absent")

	out, err := execute(t, "normalize", "gauge.csv", "--data-dir", dir,
		"--date-column", "day",
		"--column-map", "prcp=P [mm/day],pet=PET [mm/day],q=Q [mm/day],tmean=T [C]",
		"--end", "2002-10-02")
	require.NoError(t, err)
	assert.Equal(t, "date,P [mm/day],PET [mm/day],Q [mm/day],T [C],Date\n"+
		"2002-10-01,1,0.3,1.4,8,Oct-01-02\n"+
		"2002-10-02,2,0.4,1.5,9,Oct-02-02\n", out)
}

func TestNormalizeCommand_InvalidColumnMap(t *testing.T) {
	_, err := execute(t, "normalize", "x.csv", "--data-dir", t.TempDir(), "--column-map", "prcp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--column-map")
}
