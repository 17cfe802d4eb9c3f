package research

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLookup() LookupResult {
	return LookupResult{
		Subject:  "Jane Doe",
		Query:    LookupQuery("Jane Doe"),
		Question: DefaultQuestion,
		Knowledge: []Block{
			{Label: LabelInitial, Text: "initial, with comma"},
			{Label: DeepDiveLabel("employment"), Text: "works at Acme"},
		},
		Answer: "## Jane Doe\nTeacher.",
	}
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFromPath("out/report.json"))
	assert.Equal(t, FormatCSV, FormatFromPath("r.csv"))
	assert.Equal(t, FormatText, FormatFromPath("r.txt"))
	assert.Equal(t, FormatMarkdown, FormatFromPath("r.md"))
	assert.Equal(t, FormatMarkdown, FormatFromPath("report"))
}

func TestSaveLookupFormats(t *testing.T) {
	dir := t.TempDir()
	res := sampleLookup()

	jsonPath := filepath.Join(dir, "nested", "r.json")
	require.NoError(t, SaveLookup(jsonPath, FormatJSON, res))
	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded LookupResult
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, res.Knowledge, decoded.Knowledge)

	csvPath := filepath.Join(dir, "r.csv")
	require.NoError(t, SaveLookup(csvPath, FormatCSV, res))
	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"label", "text"}, rows[0])
	assert.Equal(t, []string{"Initial", "initial, with comma"}, rows[1])
	assert.Equal(t, []string{"Answer", res.Answer}, rows[3])

	mdPath := filepath.Join(dir, "r.md")
	require.NoError(t, SaveLookup(mdPath, FormatMarkdown, res))
	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# Jane Doe\n"))
	assert.Contains(t, string(md), "### Deep dive: employment\nworks at Acme")

	txtPath := filepath.Join(dir, "r.txt")
	require.NoError(t, SaveLookup(txtPath, FormatText, res))
	txt, err := os.ReadFile(txtPath)
	require.NoError(t, err)
	assert.Equal(t, res.Answer+"\n", string(txt))

	assert.Error(t, SaveLookup(filepath.Join(dir, "r.pdf"), "pdf", res))
}

func TestSaveReport(t *testing.T) {
	dir := t.TempDir()
	r := Report{
		Objective:          "vet match",
		TotalCycles:        1,
		TotalFindings:      2,
		SuccessfulFindings: 1,
		FinalConfidence:    0.7,
		StopReason:         StopMaxCycles,
		Findings: []Finding{
			{Tool: ToolWebSearch, Query: "Verify identity of Jane", Success: true, Confidence: 0.7, Data: "nurse"},
			{Tool: ToolSocialLookup, Query: "Search username: jd", Error: "Tool social_lookup not yet implemented"},
		},
	}

	mdPath := filepath.Join(dir, "r.md")
	require.NoError(t, SaveReport(mdPath, FormatMarkdown, r))
	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "- Stop reason: max_cycles_reached")
	assert.Contains(t, string(md), "_Failed: Tool social_lookup not yet implemented_")

	csvPath := filepath.Join(dir, "r.csv")
	require.NoError(t, SaveReport(csvPath, FormatCSV, r))
	raw, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(raw))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"web_search", "Verify identity of Jane", "true", "0.70", "nurse", ""}, rows[1])
}
