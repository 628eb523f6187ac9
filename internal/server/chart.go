package server

import "github.com/MarcoPoloResearchLab/podium/internal/voting"

const (
	vegaLiteSchema       = "https://vega.github.io/schema/vega-lite/v5.json"
	chartFieldCompetitor = "Competitor"
	chartFieldVotes      = "Votes"
)

// chartDocument is a Vega-Lite bar chart of one category's tallies.
type chartDocument struct {
	Schema   string        `json:"$schema"`
	Title    string        `json:"title"`
	Width    string        `json:"width"`
	Data     chartData     `json:"data"`
	Mark     chartMark     `json:"mark"`
	Encoding chartEncoding `json:"encoding"`
	Params   []chartParam  `json:"params"`
}

type chartData struct {
	Values []map[string]any `json:"values"`
}

type chartMark struct {
	Type    string `json:"type"`
	Tooltip bool   `json:"tooltip"`
}

type chartEncoding struct {
	X       chartChannel   `json:"x"`
	Y       chartChannel   `json:"y"`
	Color   chartChannel   `json:"color"`
	Tooltip []chartChannel `json:"tooltip"`
}

type chartChannel struct {
	Field string `json:"field"`
	Type  string `json:"type"`
	Sort  string `json:"sort,omitempty"`
}

type chartParam struct {
	Name   string         `json:"name"`
	Select map[string]any `json:"select"`
	Bind   string         `json:"bind"`
}

// buildTallyChart renders ranked tallies as bars sorted by descending votes, colored per
// competitor, with tooltips and zoom/pan bound to the scales.
func buildTallyChart(category string, tallies []voting.TallyRow) chartDocument {
	values := make([]map[string]any, 0, len(tallies))
	for _, row := range tallies {
		values = append(values, map[string]any{
			chartFieldCompetitor: row.Competitor,
			chartFieldVotes:      row.Votes,
		})
	}
	return chartDocument{
		Schema: vegaLiteSchema,
		Title:  "Results: " + category,
		Width:  "container",
		Data:   chartData{Values: values},
		Mark:   chartMark{Type: "bar", Tooltip: true},
		Encoding: chartEncoding{
			X:     chartChannel{Field: chartFieldCompetitor, Type: "nominal", Sort: "-y"},
			Y:     chartChannel{Field: chartFieldVotes, Type: "quantitative"},
			Color: chartChannel{Field: chartFieldCompetitor, Type: "nominal"},
			Tooltip: []chartChannel{
				{Field: chartFieldCompetitor, Type: "nominal"},
				{Field: chartFieldVotes, Type: "quantitative"},
			},
		},
		Params: []chartParam{
			{Name: "grid", Select: map[string]any{"type": "interval"}, Bind: "scales"},
		},
	}
}
