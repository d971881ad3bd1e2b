package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kpi-screener/internal/model"
)

const sampleRequestYAML = `
name: profitable-growers
universe:
  country_ids: [1]
groups:
  - operator: AND
    kpis:
      - kpi: revenue
        methods:
          - kind: relative
            relative:
              operator: ">="
              threshold: 5
              mode: qoq
            duration:
              type: last_n
              last_n: 8
              frequency: quarterly
      - kpi: net_income
        methods:
          - kind: absolute
            absolute:
              operator: ">"
              threshold: 0
            duration:
              type: last_n
              last_n: 4
              frequency: quarterly
group_op: AND
`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadRequest(t *testing.T) {
	path := writeTempFile(t, "request.yaml", sampleRequestYAML)

	req, err := loadRequest(path)
	require.NoError(t, err)

	assert.Equal(t, "profitable-growers", req.Name)
	assert.Equal(t, []int{1}, req.Universe.CountryIDs)
	assert.Equal(t, []string{"revenue", "net_income"}, req.KPINames())
	assert.Equal(t, model.OpAND, req.GroupOp)
	assert.Equal(t, model.MethodRelative, req.Groups[0].KPIs[0].Methods[0].Kind)
}

func TestLoadRequest_InvalidRequestRejected(t *testing.T) {
	path := writeTempFile(t, "request.yaml", `
name: empty
groups: []
`)

	_, err := loadRequest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no filter groups")
}

func TestLoadRequest_MalformedYAML(t *testing.T) {
	path := writeTempFile(t, "request.yaml", "groups: [unclosed")

	_, err := loadRequest(path)
	require.Error(t, err)
}

func TestLoadRequest_MissingFile(t *testing.T) {
	_, err := loadRequest(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadYAML_EmptyPath(t *testing.T) {
	var out any
	err := loadYAML("", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no file configured")
}

func TestLoadYAML_InstrumentList(t *testing.T) {
	path := writeTempFile(t, "universe.yaml", `
- id: 1
  ticker: VOD
  name: Vodafone
- id: 2
  ticker: BP.
  name: BP
`)

	var instruments []model.Instrument
	require.NoError(t, loadYAML(path, &instruments))
	require.Len(t, instruments, 2)
	assert.Equal(t, "VOD", instruments[0].Ticker)
	assert.Equal(t, 2, instruments[1].ID)
}
