package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheStrul/Sacks-new-sub004/internal/config"
	"github.com/TheStrul/Sacks-new-sub004/internal/lookup"
)

func hasIssue(issues []config.Issue, path, msgSubstr string) bool {
	for _, iss := range issues {
		if iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func table(pairs ...string) *lookup.Table {
	t := lookup.NewTable()
	for i := 0; i+1 < len(pairs); i += 2 {
		t.Add(pairs[i], pairs[i+1])
	}
	return t
}

func goodDoc() *config.Document {
	return &config.Document{
		Lookups: lookup.Tables{"Brand": table("chanel", "Chanel", "Chanel", "Chanel")},
		Sources: []config.Source{{
			Name: "A",
			Columns: []config.ColumnRule{{
				Column: "Description",
				Actions: []config.ActionDef{
					{Op: "find", Output: "Product.Brand", Assign: true,
						Parameters: config.Params{"Pattern": "lookup:Brand"}},
				},
			}},
		}},
	}
}

func TestSource_Valid(t *testing.T) {
	report, plan := Source(goodDoc(), "A")
	require.True(t, report.Valid, "%+v", report)
	require.NotNil(t, plan)
	defer plan.Close()

	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, "A", plan.Source)
	require.Len(t, plan.Columns, 1)
	assert.Equal(t, "Description", plan.Columns[0].Name)
}

/*
TestSource_AggregatesErrors verifies that a document with several independent
problems reports all of them in one pass, and that no plan is returned.
*/
func TestSource_AggregatesErrors(t *testing.T) {
	doc := goodDoc()
	doc.Lookups["Gender"] = table("M", "Male", "m", "Medium")
	doc.Sources[0].Columns = append(doc.Sources[0].Columns,
		config.ColumnRule{Column: "Size", Actions: []config.ActionDef{
			{Op: "find", Output: "S", Parameters: config.Params{"Pattern": `(\d+`}},
			{Op: "map", Output: "G", Parameters: config.Params{"Table": "Sex"}},
			{Op: "assign", Output: "X", Condition: "X<3"},
			{Op: "frobnicate", Output: "Y"},
			{Op: "convert", Output: "Z", Parameters: config.Params{"Preset": "oz-ml", "UnitKey": "bad key"}},
		}},
	)

	report, plan := Source(doc, "A")
	assert.Nil(t, plan)
	assert.False(t, report.Valid)

	errs := report.Errors
	assert.True(t, hasIssue(errs, "lookups.Gender", "maps to both"))
	assert.True(t, hasIssue(errs, "sources[0].columns[1].actions[0].parameters.Pattern", "pattern"))
	assert.True(t, hasIssue(errs, "sources[0].columns[1].actions[1].parameters.Table", "unknown lookup table"))
	assert.True(t, hasIssue(errs, "sources[0].columns[1].actions[2].condition", "expected"))
	assert.True(t, hasIssue(errs, "sources[0].columns[1].actions[3].op", "unknown op"))
	assert.True(t, hasIssue(errs, "sources[0].columns[1].actions[4].parameters.UnitKey", "not a valid workspace key"))
	assert.Len(t, errs, 6)
}

func TestSource_Warnings(t *testing.T) {
	doc := goodDoc()
	doc.Lookups["Concentration"] = table("Eau de Toilette", "EDT")
	doc.Sources[0].Columns = append(doc.Sources[0].Columns, config.ColumnRule{
		Column: "description",
		Actions: []config.ActionDef{
			{Op: "split", Output: "P", Parameters: config.Params{"Strict": "true"}},
		},
	})

	report, plan := Source(doc, "A")
	require.True(t, report.Valid)
	plan.Close()

	w := report.Warnings
	assert.True(t, hasIssue(w, "lookups.Concentration", `canonical "EDT" is not among its own aliases`))
	assert.True(t, hasIssue(w, "sources[0].columns[1].column", "already has a rule"))
	assert.True(t, hasIssue(w, "sources[0].columns[1].actions[0].parameters.Strict", "ExpectedParts"))
}

func TestSource_OverrideTables(t *testing.T) {
	doc := goodDoc()
	doc.Sources[0].Lookups = lookup.Tables{"Local": table("x", "X", "X", "X")}
	doc.Sources[0].Columns[0].Actions = append(doc.Sources[0].Columns[0].Actions,
		config.ActionDef{Op: "map", Output: "L", Parameters: config.Params{"Table": "Local"}})

	report, plan := Source(doc, "A")
	require.True(t, report.Valid, "%+v", report.Errors)
	defer plan.Close()
	_, ok := plan.Tables.Resolve("Brand", "CHANEL")
	assert.True(t, ok)
	_, ok = plan.Tables.Resolve("Local", "x")
	assert.True(t, ok)
}

func TestSource_Structure(t *testing.T) {
	report, plan := Source(goodDoc(), "Missing")
	assert.Nil(t, plan)
	assert.True(t, hasIssue(report.Errors, "sources", "unknown source"))

	empty := &config.Document{Sources: []config.Source{{Name: "A"}}}
	report, _ = Source(empty, "A")
	assert.True(t, hasIssue(report.Errors, "sources[0].columns", "no column rules"))

	noActions := &config.Document{Sources: []config.Source{{Name: "A", Columns: []config.ColumnRule{{Column: "x"}}}}}
	report, _ = Source(noActions, "A")
	assert.True(t, hasIssue(report.Errors, "sources[0].columns[0].actions", "no actions"))
}

func TestDocument_AllSources(t *testing.T) {
	doc := goodDoc()
	doc.Sources = append(doc.Sources,
		config.Source{Name: "a", Columns: doc.Sources[0].Columns},
		config.Source{Name: "B", Columns: []config.ColumnRule{{Column: "x", Actions: []config.ActionDef{{Op: "assign"}}}}},
	)

	report := Document(doc)
	assert.False(t, report.Valid)
	assert.True(t, hasIssue(report.Errors, "sources[1].name", "already declared"))
	assert.True(t, hasIssue(report.Errors, "sources[2].columns[0].actions[0].output", "must not be empty"))

	assert.False(t, Document(&config.Document{}).Valid)
	assert.True(t, Document(goodDoc()).Valid)
}

// TestDocument_YAMLConflictReported verifies that a conflicting alias
// authored twice in YAML surfaces as an aggregated error issue.
func TestDocument_YAMLConflictReported(t *testing.T) {
	const y = `
lookups:
  Brand:
    chanel: Chanel
    chanel: Chloe
    Chanel: Chanel
sources:
  - name: A
    columns:
      - column: Description
        actions:
          - op: map
            output: Product.Brand
            parameters: { Table: Brand }
`
	doc, err := config.ParseDocument([]byte(y), config.FormatYAML)
	require.NoError(t, err)

	report := Document(doc)
	assert.False(t, report.Valid)
	assert.True(t, hasIssue(report.Errors, "lookups.Brand", "chanel"), "%+v", report.Errors)
}

func TestError_IsInvalidConfig(t *testing.T) {
	report, _ := Source(goodDoc(), "Missing")
	var err error = &Error{Report: report}
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}
