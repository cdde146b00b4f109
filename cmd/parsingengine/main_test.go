package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheStrul/Sacks-new-sub004/internal/config"
)

const rulesYAML = `
lookups:
  Brand:
    chanel: Chanel
    Chanel: Chanel
sources:
  - name: Offers
    lookups:
      Gender:
        w: Women
        W: Women
    columns:
      - column: Description
        actions:
          - op: find
            output: Product.Brand
            assign: true
            parameters: { Pattern: "lookup:Brand" }
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	code := run(context.Background(), append(args, "-log-level", "error"), &out, io.Discard)
	return code, out.String()
}

func TestRun_RequiresConfigOrRules(t *testing.T) {
	code, _ := runCLI(t)
	assert.Equal(t, 2, code)
}

func TestRun_ValidateRules(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.yaml", rulesYAML)

	code, out := runCLI(t, "-rules", rules, "-validate")
	require.Equal(t, 0, code, out)

	var rep config.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.True(t, rep.Valid)
}

func TestRun_ValidateReportsErrors(t *testing.T) {
	dir := t.TempDir()
	bad := strings.Replace(rulesYAML, `Pattern: "lookup:Brand"`, `Pattern: "lookup:Missing"`, 1)
	rules := writeFile(t, dir, "rules.yaml", bad)

	code, out := runCLI(t, "-rules", rules, "-source", "Offers", "-validate")
	assert.Equal(t, 1, code)

	var rep config.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.False(t, rep.Valid)
	assert.NotEmpty(t, rep.Errors)
}

func TestRun_DumpLookups(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.yaml", rulesYAML)

	code, out := runCLI(t, "-rules", rules, "-dump-lookups")
	require.Equal(t, 0, code)
	assert.Contains(t, out, `"Brand"`)
	assert.NotContains(t, out, `"Gender"`)

	code, out = runCLI(t, "-rules", rules, "-source", "Offers", "-dump-lookups", "-format", "yaml")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Brand:")
	assert.Contains(t, out, "Gender:")
	assert.Contains(t, out, "canonical: Women")
}

// TestRun_Job runs a whole job from a pipeline file into a JSON lines sink.
func TestRun_Job(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.yaml", rulesYAML)
	input := writeFile(t, dir, "offers.csv", "Description\nCHANEL NO.5\nnothing here\n")
	out := filepath.Join(dir, "out.jsonl")

	spec := map[string]any{
		"job":    "offers",
		"input":  map[string]any{"kind": "file", "file": map[string]any{"path": input}},
		"parser": map[string]any{"kind": "csv", "options": map[string]any{"has_header": true}},
		"engine": map[string]any{"rules": rules, "source": "Offers"},
		"storage": map[string]any{"kind": "jsonl", "db": map[string]any{
			"dsn": out, "columns": []string{"brand"}, "fields": map[string]string{"brand": "Product.Brand"},
		}},
		"runtime": map[string]any{"batch_size": 10},
	}
	b, err := json.Marshal(spec)
	require.NoError(t, err)
	cfg := writeFile(t, dir, "job.json", string(b))

	code, _ := runCLI(t, "-config", cfg, "-metrics-backend", "none")
	require.Equal(t, 0, code)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, `{"brand":"Chanel"}`+"\n", string(got))

	// The same file passes -validate with pipeline checks included.
	code, report := runCLI(t, "-config", cfg, "-validate")
	assert.Equal(t, 0, code, report)
}

func TestRun_InvalidPipelineRefused(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.yaml", rulesYAML)
	cfg := writeFile(t, dir, "job.json", `{"engine":{"rules":"`+filepath.ToSlash(rules)+`"},"storage":{"kind":""}}`)

	code, _ := runCLI(t, "-config", cfg)
	assert.Equal(t, 1, code)
}

func TestResolvePipeline_Overrides(t *testing.T) {
	p, err := resolvePipeline(flags{rulesPath: "r.yaml", source: "S", learnedPath: "l.json"})
	require.NoError(t, err)
	assert.Equal(t, config.EngineConfig{Rules: "r.yaml", Source: "S", Learn: true, LearnedPath: "l.json"}, p.Engine)

	_, err = resolvePipeline(flags{})
	assert.ErrorContains(t, err, "no rule document")
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty())
}
