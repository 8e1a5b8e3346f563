// Package report renders a pipeline run for people: a console summary and
// an Org-mode document.
package report

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"text/template"
	"time"

	"github.com/rustyeddy/crowding/crowding"
	"github.com/rustyeddy/crowding/dataset"
	"github.com/rustyeddy/crowding/model"
	"github.com/rustyeddy/crowding/pipeline"
)

// FactorRow is the per-factor line of a report.
type FactorRow struct {
	Factor        string
	MaxDrawdown   float64
	DailyCrashes  int
	WeeklyCrashes int
	Episodes      int
	Unresolved    int
	MeanDepth     float64
	MedianDays    float64
}

// HorizonRow is the per-horizon block of a report.
type HorizonRow struct {
	Horizon   int
	Rows      int
	Positives int
	Skipped   bool
	Model     *model.Result
	Deciles   []model.Decile

	// Latest is the fitted crash probability of the last dataset row, NaN
	// without a model.
	Latest     float64
	LatestDate time.Time
}

// Run is the template view of a pipeline result.
type Run struct {
	RunID    string
	Created  time.Time
	Source   string
	Start    time.Time
	End      time.Time
	Rows     int
	Families []crowding.Family
	Factors  []FactorRow
	Horizons []HorizonRow
	Warnings []string
}

// NewRun flattens res into the report view.
func NewRun(res *pipeline.Result) Run {
	v := Run{
		RunID:    res.RunID,
		Created:  res.Created,
		Source:   res.Source,
		Start:    res.Start,
		End:      res.End,
		Rows:     res.Rows,
		Warnings: res.Warnings,
	}
	if res.Crowding != nil {
		v.Families = res.Crowding.Included
	}
	for _, a := range res.Factors {
		v.Factors = append(v.Factors, FactorRow{
			Factor:        a.Factor,
			MaxDrawdown:   a.MaxDrawdown,
			DailyCrashes:  a.Daily.Count(),
			WeeklyCrashes: a.Weekly.Count(),
			Episodes:      a.Summary.Count,
			Unresolved:    a.Summary.Unresolved,
			MeanDepth:     a.Summary.MeanDepth,
			MedianDays:    a.Summary.DurationP50,
		})
	}
	for _, hr := range res.Horizons {
		row := HorizonRow{Horizon: hr.Horizon, Model: hr.Model, Skipped: hr.Model == nil, Deciles: hr.Deciles, Latest: math.NaN()}
		if hr.Dataset != nil {
			row.Rows = hr.Dataset.Len()
			row.Positives = hr.Dataset.Positives()
			row.Latest, row.LatestDate = latest(hr.Model, hr.Dataset)
		}
		v.Horizons = append(v.Horizons, row)
	}
	return v
}

// latest scores the last row of ds with m.
func latest(m *model.Result, ds *dataset.Dataset) (float64, time.Time) {
	if m == nil || ds.Len() == 0 {
		return math.NaN(), time.Time{}
	}
	row := ds.Rows[ds.Len()-1]
	names := m.Features()
	x := make([]float64, 0, len(names))
	for _, name := range names {
		j := ds.FeatureIndex(name)
		if j < 0 {
			return math.NaN(), time.Time{}
		}
		x = append(x, row.Features[j])
	}
	return m.Probability(x), row.Date
}

var orgFuncs = template.FuncMap{
	"pct": func(x float64) string { return num(x * 100) },
	"num": num,
	"day": func(t time.Time) string { return t.Format("2006-01-02") },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

func num(x float64) string {
	if math.IsNaN(x) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", x)
}

var orgTemplate = template.Must(template.New("run").Funcs(orgFuncs).Parse(OrgTemplate))

// Org renders res as an Org-mode document.
func Org(res *pipeline.Result) (string, error) {
	buf := new(bytes.Buffer)
	if err := orgTemplate.Execute(buf, NewRun(res)); err != nil {
		return "", fmt.Errorf("render org report: %w", err)
	}
	return buf.String(), nil
}

// WriteOrg renders res to path.
func WriteOrg(path string, res *pipeline.Result) error {
	s, err := Org(res)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0644)
}

const OrgTemplate = `* CROWDING RUN: {{.Source}} {{day .Start}}..{{day .End}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:SOURCE:      {{.Source}}
:START_DATE:  {{day .Start}}
:END_DATE:    {{day .End}}
:ROWS:        {{.Rows}}
:FAMILIES:    {{range $i, $f := .Families}}{{if $i}} {{end}}{{$f}}{{end}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Factor Drawdowns
| Factor | Max DD % | Daily crashes | Weekly crashes | Episodes | Unresolved | Mean depth % | Median days |
|--------+----------+---------------+----------------+----------+------------+--------------+-------------|
{{- range .Factors}}
| {{.Factor}} | {{pct .MaxDrawdown}} | {{.DailyCrashes}} | {{.WeeklyCrashes}} | {{.Episodes}} | {{.Unresolved}} | {{pct .MeanDepth}} | {{num .MedianDays}} |
{{- end}}
{{range .Horizons}}
** Horizon {{.Horizon}}
- Rows:      {{.Rows}}
- Positives: {{.Positives}}
{{- if .Skipped}}
- Classifier skipped
{{- else}}
- Fit AUC:     *{{num .Model.FitAUC}}*
- Holdout AUC: *{{num .Model.HoldoutAUC}}*
- Split:       {{.Model.Split}}
- Confusion:   TN={{.Model.Confusion.TN}} FP={{.Model.Confusion.FP}} FN={{.Model.Confusion.FN}} TP={{.Model.Confusion.TP}}
- Latest:      p={{num .Latest}} at {{day .LatestDate}}

*** Coefficients
| Name | Value |
|------+-------|
{{- range .Model.Coefficients}}
| {{.Name}} | {{num .Value}} |
{{- end}}
{{- end}}
{{- if .Deciles}}

*** Deciles
| Bucket | Count | Crowding mean | Forward mean | Forward std |
|--------+-------+---------------+--------------+-------------|
{{- range .Deciles}}
| {{.Bucket}} | {{.Count}} | {{num .CrowdingMean}} | {{num .ForwardMean}} | {{num .ForwardStd}} |
{{- end}}
{{- end}}
{{end}}
{{- if .Warnings}}
** Warnings
{{- range .Warnings}}
- {{.}}
{{- end}}
{{- end}}
`
