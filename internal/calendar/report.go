package calendar

import (
	"math"
	"time"

	"propcheck/internal/domain"
)

// TemplateReport is one template's 12-month calendar row.
type TemplateReport struct {
	Template       domain.InspectionTemplate `json:"template"`
	Months         [12]MonthCell             `json:"months"`
	ComplianceRate int                       `json:"compliance_rate"`
}

// Report is the derived per-year compliance aggregate. It holds no identity
// and is fully recomputed per request.
type Report struct {
	Year                  int              `json:"year"`
	Templates             []TemplateReport `json:"templates"`
	OverallComplianceRate int              `json:"overall_compliance_rate"`
	TotalScheduled        int              `json:"total_scheduled"`
	TotalCompleted        int              `json:"total_completed"`
}

// BuildReport assembles the full compliance report for one entity-year from
// the templates that apply to it and the instances already filtered to it.
// Templates with zero instances still appear, with twelve not_scheduled
// months and a rate of 0.
func BuildReport(templates []domain.InspectionTemplate, instances []domain.InspectionInstance, year int, now time.Time) (Report, error) {
	rep := Report{Year: year, Templates: []TemplateReport{}}
	scheduledMonths, completedMonths := 0, 0
	for _, tpl := range templates {
		buckets, err := Bucket(instances, tpl.ID, year, now)
		if err != nil {
			return Report{}, err
		}
		cells, err := cellsFromBuckets(buckets)
		if err != nil {
			return Report{}, err
		}
		for _, c := range cells {
			rep.TotalScheduled += c.Count
			rep.TotalCompleted += c.CompletedCount
			if c.Status == StatusNotScheduled {
				continue
			}
			scheduledMonths++
			if c.Status == StatusCompleted {
				completedMonths++
			}
		}
		rep.Templates = append(rep.Templates, TemplateReport{
			Template:       tpl,
			Months:         cells,
			ComplianceRate: ComplianceRate(cells),
		})
	}
	if scheduledMonths > 0 {
		rep.OverallComplianceRate = int(math.Round(100 * float64(completedMonths) / float64(scheduledMonths)))
	}
	return rep, nil
}
