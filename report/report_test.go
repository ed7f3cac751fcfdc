package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"git.fiblab.net/sim/tourplan/planner"
	"git.fiblab.net/sim/tourplan/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func referencePlan(t *testing.T) *planner.Plan {
	t.Helper()
	n, err := planner.NewNetwork(
		[]planner.Intersection{{ID: 0}, {ID: 1}, {ID: 2}},
		[]planner.Road{
			{Origin: 0, Destination: 1, Time: 300, Name: "Rue A"},
			{Origin: 1, Destination: 2, Time: 300, Name: "Rue B"},
			{Origin: 2, Destination: 0, Time: 300, Name: "Rue C"},
			{Origin: 0, Destination: 2, Time: 500, Name: "Rue D"},
			{Origin: 2, Destination: 1, Time: 500, Name: "Rue E"},
			{Origin: 1, Destination: 0, Time: 300, Name: "Rue F"},
		},
	)
	require.NoError(t, err)
	window := time.Date(2026, 10, 16, 8, 20, 0, 0, time.UTC)
	q := &planner.DeliveryQuery{
		Warehouse: planner.Warehouse{Intersection: 0, Departure: time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)},
		Deliveries: []planner.Delivery{
			{Intersection: 1, Duration: 5 * time.Minute},
			{Intersection: 2, Duration: 10 * time.Minute, WindowStart: &window},
		},
	}
	p, err := planner.New(n, planner.Config{TimeLimit: time.Second}).Plan(context.Background(), q)
	require.NoError(t, err)
	return p
}

func TestNewPlanDoc(t *testing.T) {
	doc := report.NewPlanDoc(referencePlan(t))
	assert.Equal(t, planner.StatusOptimal, doc.Status)
	assert.Equal(t, []int{0, 1, 2}, doc.Order)
	assert.Equal(t, 900.0, doc.Travel)
	assert.Equal(t, 300.0, doc.Wait)
	require.NotNil(t, doc.Return)
	assert.Equal(t, time.Date(2026, 10, 16, 8, 35, 0, 0, time.UTC), *doc.Return)

	require.Len(t, doc.Stops, 3)
	assert.Equal(t, 300.0, doc.Stops[1].Wait)
	require.NotNil(t, doc.Stops[1].Departure)
	assert.Equal(t, time.Date(2026, 10, 16, 8, 30, 0, 0, time.UTC), *doc.Stops[1].Departure)
	assert.Nil(t, doc.Stops[2].Departure)
	assert.Equal(t, "Rue C", doc.Stops[2].Roads[0].Name)
	assert.Contains(t, doc.Text, "Wait 5 min.")

	b, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"optimal"`)
}

func TestNewPlanDocWithoutTour(t *testing.T) {
	p := &planner.Plan{
		Query:  &planner.DeliveryQuery{Warehouse: planner.Warehouse{Intersection: 4}},
		Status: planner.StatusInfeasible,
	}
	doc := report.NewPlanDoc(p)
	assert.Equal(t, "no feasible tour exists", doc.Message)
	assert.Empty(t, doc.Stops)
	assert.Nil(t, doc.Return)

	err := report.WriteFile(filepath.Join(t.TempDir(), "plan.txt"), p)
	assert.ErrorIs(t, err, report.ErrNoItinerary)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteXLSX(&buf, referencePlan(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{report.SHEET_ITINERARY, report.SHEET_ROADS}, f.GetSheetList())

	rows, err := f.GetRows(report.SHEET_ITINERARY)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Arrival", rows[0][3])
	assert.Equal(t, []string{"2", "delivery", "2", "08:15:00", "5", "08:20:00", "08:30:00", "5", "Rue B"}, rows[2])
	assert.Equal(t, "Total", rows[4][0])

	roads, err := f.GetRows(report.SHEET_ROADS)
	require.NoError(t, err)
	assert.Len(t, roads, 4)
}

func TestWriteFile(t *testing.T) {
	p := referencePlan(t)
	dir := t.TempDir()

	txt := filepath.Join(dir, "plan.txt")
	require.NoError(t, report.WriteFile(txt, p))
	b, err := os.ReadFile(txt)
	require.NoError(t, err)
	assert.Equal(t, p.Itinerary.String(), string(b))

	js := filepath.Join(dir, "plan.json")
	require.NoError(t, report.WriteFile(js, p))
	b, err = os.ReadFile(js)
	require.NoError(t, err)
	var doc report.PlanDoc
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, []int{0, 1, 2}, doc.Order)

	require.NoError(t, report.WriteFile(filepath.Join(dir, "plan.xlsx"), p))
}
