package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/beevik/etree"
	jsoniter "github.com/json-iterator/go"
	"github.com/xkilldash9x/bolt/internal/stopwatch"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ScenarioReport is one scenario in a Report.
type ScenarioReport struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	FeatureTag  string        `json:"feature_tag"`
	ScenarioTag string        `json:"scenario_tag"`
	Status      string        `json:"status"`
	FailedStep  string        `json:"failed_step,omitempty"`
	Error       string        `json:"error,omitempty"`
	StepsRun    int           `json:"steps_run"`
	Started     time.Time     `json:"started"`
	Duration    time.Duration `json:"duration_ns"`
	Screenshot  string        `json:"screenshot,omitempty"`
}

// Report summarizes a run.
type Report struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Passed      int               `json:"passed"`
	Failed      int               `json:"failed"`
	Skipped     int               `json:"skipped"`
	Scenarios   []ScenarioReport  `json:"scenarios"`
	Time        stopwatch.Summary `json:"time"`
}

// NewReport builds a report from results and the run's stopwatch totals.
func NewReport(runID string, at time.Time, results []Result, times stopwatch.Summary) Report {
	r := Report{RunID: runID, GeneratedAt: at, Time: times, Scenarios: make([]ScenarioReport, 0, len(results))}
	for _, res := range results {
		switch res.Status {
		case Passed:
			r.Passed++
		case Failed:
			r.Failed++
		case Skipped:
			r.Skipped++
		}
		sr := ScenarioReport{
			ID:          res.ID,
			Name:        res.Name,
			FeatureTag:  res.FeatureTag,
			ScenarioTag: res.ScenarioTag,
			Status:      res.Status.String(),
			FailedStep:  res.FailedStep,
			StepsRun:    res.StepsRun,
			Started:     res.Started,
			Duration:    res.Duration,
			Screenshot:  res.Screenshot,
		}
		if res.Err != nil {
			sr.Error = res.Err.Error()
		}
		r.Scenarios = append(r.Scenarios, sr)
	}
	return r
}

// OK reports whether nothing failed. Skips do not count as failures.
func (r Report) OK() bool { return r.Failed == 0 }

// WriteJSON writes the report as indented JSON.
func (r Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run report: %w", err)
	}
	return writeFile(path, data)
}

// JUnit renders the report in the JUnit XML layout CI servers read.
func (r Report) JUnit() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	var total time.Duration
	for _, s := range r.Scenarios {
		total += s.Duration
	}

	suites := doc.CreateElement("testsuites")
	suite := suites.CreateElement("testsuite")
	suite.CreateAttr("name", "bolt")
	suite.CreateAttr("tests", strconv.Itoa(len(r.Scenarios)))
	suite.CreateAttr("failures", strconv.Itoa(r.Failed))
	suite.CreateAttr("skipped", strconv.Itoa(r.Skipped))
	suite.CreateAttr("time", seconds(total))
	suite.CreateAttr("timestamp", r.GeneratedAt.UTC().Format(time.RFC3339))

	props := suite.CreateElement("properties")
	for _, kv := range [][2]string{
		{"run_id", r.RunID},
		{"working_time", seconds(r.Time.Working.Elapsed)},
		{"waiting_time", seconds(r.Time.Waiting.Elapsed)},
	} {
		p := props.CreateElement("property")
		p.CreateAttr("name", kv[0])
		p.CreateAttr("value", kv[1])
	}

	for _, s := range r.Scenarios {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", s.Name)
		tc.CreateAttr("classname", s.FeatureTag+"."+s.ScenarioTag)
		tc.CreateAttr("time", seconds(s.Duration))
		switch s.Status {
		case Failed.String():
			f := tc.CreateElement("failure")
			f.CreateAttr("message", s.FailedStep)
			f.SetText(s.Error)
		case Skipped.String():
			sk := tc.CreateElement("skipped")
			sk.CreateAttr("message", s.Error)
		}
		if s.Screenshot != "" {
			tc.CreateElement("system-out").SetText("[[ATTACHMENT|" + s.Screenshot + "]]")
		}
	}
	doc.Indent(2)
	return doc
}

// WriteJUnit writes the JUnit XML rendering of the report.
func (r Report) WriteJUnit(path string) error {
	out, err := r.JUnit().WriteToBytes()
	if err != nil {
		return fmt.Errorf("encoding junit report: %w", err)
	}
	return writeFile(path, out)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
