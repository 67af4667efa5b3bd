package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/bolt/internal/stopwatch"
)

func sampleResults() []Result {
	return []Result{
		{ID: "a", Name: "Log in", FeatureTag: "@Login", ScenarioTag: "@TC-001", Status: Passed, StepsRun: 3, Started: epoch, Duration: 12 * time.Second},
		{ID: "b", Name: "Create account", FeatureTag: "@Accounts", ScenarioTag: "@TC-002", Status: Failed, Err: errors.New("expected:<Saved> but was:<Error>"), FailedStep: "check toast", StepsRun: 4, Started: epoch.Add(time.Minute), Duration: 30 * time.Second, Screenshot: "target/screenshot/b.png"},
		{ID: "c", Name: "Approve quote", FeatureTag: "@Quotes", ScenarioTag: "@TC-003", Status: Skipped, Err: errors.New("Home logo not visible"), FailedStep: "arrive", StepsRun: 1, Started: epoch.Add(2 * time.Minute), Duration: 90 * time.Second},
	}
}

func sampleTimes() stopwatch.Summary {
	return stopwatch.Summary{
		Working: stopwatch.Timer{Elapsed: 40 * time.Second, Count: 12},
		Waiting: stopwatch.Timer{Elapsed: 92 * time.Second, Count: 11},
	}
}

func TestNewReport(t *testing.T) {
	r := NewReport("run-1", epoch, sampleResults(), sampleTimes())

	want := Report{
		RunID:       "run-1",
		GeneratedAt: epoch,
		Passed:      1,
		Failed:      1,
		Skipped:     1,
		Time:        sampleTimes(),
		Scenarios: []ScenarioReport{
			{ID: "a", Name: "Log in", FeatureTag: "@Login", ScenarioTag: "@TC-001", Status: "PASSED", StepsRun: 3, Started: epoch, Duration: 12 * time.Second},
			{ID: "b", Name: "Create account", FeatureTag: "@Accounts", ScenarioTag: "@TC-002", Status: "FAILED", FailedStep: "check toast", Error: "expected:<Saved> but was:<Error>", StepsRun: 4, Started: epoch.Add(time.Minute), Duration: 30 * time.Second, Screenshot: "target/screenshot/b.png"},
			{ID: "c", Name: "Approve quote", FeatureTag: "@Quotes", ScenarioTag: "@TC-003", Status: "SKIPPED", FailedStep: "arrive", Error: "Home logo not visible", StepsRun: 1, Started: epoch.Add(2 * time.Minute), Duration: 90 * time.Second},
		},
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("NewReport() mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, r.OK())

	skipsOnly := NewReport("run-2", epoch, sampleResults()[2:], stopwatch.Summary{})
	assert.True(t, skipsOnly.OK(), "skipped scenarios do not fail a run")
}

func TestWriteReports(t *testing.T) {
	dir := t.TempDir()
	r := NewReport("run-1", epoch, sampleResults(), sampleTimes())

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "nested", "report.json")
		require.NoError(t, r.WriteJSON(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var back Report
		require.NoError(t, json.Unmarshal(data, &back))
		if diff := cmp.Diff(r, back); diff != "" {
			t.Errorf("json report mismatch (-written +read):\n%s", diff)
		}
	})

	t.Run("junit", func(t *testing.T) {
		path := filepath.Join(dir, "junit.xml")
		require.NoError(t, r.WriteJUnit(path))

		doc := etree.NewDocument()
		require.NoError(t, doc.ReadFromFile(path))

		suite := doc.FindElement("./testsuites/testsuite")
		require.NotNil(t, suite)
		assert.Equal(t, "3", suite.SelectAttrValue("tests", ""))
		assert.Equal(t, "1", suite.SelectAttrValue("failures", ""))
		assert.Equal(t, "1", suite.SelectAttrValue("skipped", ""))
		assert.Equal(t, "132.000", suite.SelectAttrValue("time", ""))
		assert.Equal(t, "2024-03-01T09:05:00Z", suite.SelectAttrValue("timestamp", ""))

		var props []string
		for _, p := range suite.FindElements("./properties/property") {
			props = append(props, p.SelectAttrValue("name", "")+"="+p.SelectAttrValue("value", ""))
		}
		assert.Equal(t, []string{"run_id=run-1", "working_time=40.000", "waiting_time=92.000"}, props)

		cases := suite.SelectElements("testcase")
		require.Len(t, cases, 3)
		assert.Nil(t, cases[0].SelectElement("failure"))
		assert.Equal(t, "@Accounts.@TC-002", cases[1].SelectAttrValue("classname", ""))

		failure := cases[1].SelectElement("failure")
		require.NotNil(t, failure)
		assert.Equal(t, "check toast", failure.SelectAttrValue("message", ""))
		assert.Equal(t, "expected:<Saved> but was:<Error>", failure.Text())
		assert.Equal(t, "[[ATTACHMENT|target/screenshot/b.png]]", cases[1].SelectElement("system-out").Text())

		skipped := cases[2].SelectElement("skipped")
		require.NotNil(t, skipped)
		assert.Equal(t, "Home logo not visible", skipped.SelectAttrValue("message", ""))
	})
}
