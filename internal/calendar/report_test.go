package calendar

import (
	"testing"

	"github.com/stretchr/testify/require"

	"propcheck/internal/domain"
)

func template(id string) domain.InspectionTemplate {
	return domain.InspectionTemplate{
		ID:     id,
		OrgID:  "org-1",
		Name:   "Template " + id,
		Scope:  domain.EntityProperty,
		Active: true,
	}
}

func TestBuildReportEmptyTemplates(t *testing.T) {
	rep, err := BuildReport(nil, nil, 2024, testNow)
	require.NoError(t, err)
	require.Empty(t, rep.Templates)
	require.Zero(t, rep.OverallComplianceRate)
	require.Zero(t, rep.TotalScheduled)
}

func TestBuildReportTemplateWithoutInstances(t *testing.T) {
	rep, err := BuildReport([]domain.InspectionTemplate{template("tpl-a")}, nil, 2024, testNow)
	require.NoError(t, err)
	require.Len(t, rep.Templates, 1)
	require.Equal(t, 0, rep.Templates[0].ComplianceRate)
	for _, c := range rep.Templates[0].Months {
		require.Equal(t, StatusNotScheduled, c.Status)
	}
}

func TestBuildReportAggregates(t *testing.T) {
	templates := []domain.InspectionTemplate{template("tpl-a"), template("tpl-b")}
	instances := []domain.InspectionInstance{
		instance("i1", "tpl-a", "2024-01-10", domain.InspectionCompleted),
		instance("i2", "tpl-a", "2024-02-10", domain.InspectionCompleted),
		instance("i3", "tpl-a", "2024-03-10", domain.InspectionScheduled), // overdue by testNow
		instance("i4", "tpl-b", "2024-04-10", domain.InspectionCompleted),
	}
	rep, err := BuildReport(templates, instances, 2024, testNow)
	require.NoError(t, err)
	require.Equal(t, 4, rep.TotalScheduled)
	require.Equal(t, 3, rep.TotalCompleted)
	require.Equal(t, 67, rep.Templates[0].ComplianceRate, "tpl-a: 2 of 3 months")
	require.Equal(t, 100, rep.Templates[1].ComplianceRate)
	require.Equal(t, 75, rep.OverallComplianceRate, "3 of 4 scheduled months overall")
	require.Equal(t, StatusOverdue, rep.Templates[0].Months[2].Status)
}

func TestBuildReportDeterministic(t *testing.T) {
	templates := []domain.InspectionTemplate{template("tpl-a")}
	instances := []domain.InspectionInstance{
		instance("i1", "tpl-a", "2024-05-20", domain.InspectionScheduled),
		instance("i2", "tpl-a", "2024-06-10", domain.InspectionScheduled),
	}
	first, err := BuildReport(templates, instances, 2024, testNow)
	require.NoError(t, err)
	second, err := BuildReport(templates, instances, 2024, testNow)
	require.NoError(t, err)
	require.Equal(t, first, second)
}
