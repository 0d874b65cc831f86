// Package report renders analysis results into a standalone HTML document.
package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/DataLoomHQ/dataloom-cli/internal/dataset"
	"github.com/DataLoomHQ/dataloom-cli/internal/utils"
)

// Data carries everything the report template needs.
type Data struct {
	Title          string
	GeneratedAt    time.Time
	SessionID      string
	Summary        dataset.Summary
	Insights       []string
	Visualizations []string
	DetailJSON     string
}

// Generator writes reports under ReportsDir.
type Generator struct {
	ReportsDir string
	tmpl       *template.Template
}

// NewGenerator parses the report template and prepares the output directory.
func NewGenerator(reportsDir string) (*Generator, error) {
	if err := utils.EnsureDir(reportsDir); err != nil {
		return nil, fmt.Errorf("create reports directory: %w", err)
	}
	tmpl, err := template.New("report").Parse(reportHTML)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &Generator{ReportsDir: reportsDir, tmpl: tmpl}, nil
}

// Write renders the report and returns the written path. An empty outputPath
// gets a timestamped default name under ReportsDir.
func (g *Generator) Write(data Data, outputPath string) (string, error) {
	if data.Title == "" {
		data.Title = "Business Intelligence Analysis Report"
	}
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now()
	}
	if outputPath == "" {
		name := fmt.Sprintf("bi_report_%s.html", data.GeneratedAt.Format("20060102_150405"))
		outputPath = filepath.Join(g.ReportsDir, name)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	if err := g.tmpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return outputPath, nil
}

const reportHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
  <style>
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; max-width: 1200px; margin: 0 auto; padding: 20px; background-color: #f5f5f5; }
    .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 30px; border-radius: 10px; margin-bottom: 30px; }
    .header h1 { margin: 0; font-size: 2.5em; }
    .section { background: white; padding: 25px; margin-bottom: 20px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
    .section h2 { color: #667eea; border-bottom: 2px solid #667eea; padding-bottom: 10px; }
    .insight { background: #f0f4ff; padding: 15px; margin: 10px 0; border-left: 4px solid #667eea; border-radius: 4px; }
    .metric { display: inline-block; background: #e8f4f8; padding: 10px 20px; margin: 5px; border-radius: 5px; }
    .visualization { max-width: 100%; height: auto; margin: 15px 0; border-radius: 8px; box-shadow: 0 2px 8px rgba(0,0,0,0.1); }
    table { width: 100%; border-collapse: collapse; margin: 15px 0; }
    th, td { padding: 12px; text-align: left; border-bottom: 1px solid #ddd; }
    th { background-color: #667eea; color: white; }
    tr:hover { background-color: #f5f5f5; }
    pre { background: #f5f5f5; padding: 15px; border-radius: 5px; overflow-x: auto; }
    .footer { text-align: center; padding: 20px; color: #666; font-size: 0.9em; }
  </style>
</head>
<body>
  <div class="header">
    <h1>{{.Title}}</h1>
    <p>Generated: {{.GeneratedAt.Format "2006-01-02 15:04:05"}}</p>
    {{if .SessionID}}<p>Session: {{.SessionID}}</p>{{end}}
  </div>

  <div class="section">
    <h2>Data Summary</h2>
    <div class="metric"><strong>Dataset:</strong> {{.Summary.Name}}</div>
    <div class="metric"><strong>Rows:</strong> {{.Summary.Rows}}</div>
    <div class="metric"><strong>Columns:</strong> {{.Summary.Cols}}</div>
    {{if .Summary.Schema}}
    <table>
      <tr><th>Column</th><th>Type</th><th>Non-null</th><th>Missing</th><th>Unique</th></tr>
      {{range .Summary.Schema}}
      <tr><td>{{.Name}}</td><td>{{.Kind}}</td><td>{{.NonNull}}</td><td>{{.Missing}}</td><td>{{.Unique}}</td></tr>
      {{end}}
    </table>
    {{end}}
  </div>

  <div class="section">
    <h2>Key Insights</h2>
    {{range .Insights}}<div class="insight">&bull; {{.}}</div>{{else}}<p>No insights recorded.</p>{{end}}
  </div>

  <div class="section">
    <h2>Visualizations</h2>
    {{range .Visualizations}}<img src="{{.}}" class="visualization" alt="Visualization">{{else}}<p>No visualizations generated.</p>{{end}}
  </div>

  <div class="section">
    <h2>Detailed Analysis</h2>
    <pre>{{.DetailJSON}}</pre>
  </div>

  <div class="footer">
    <p>Generated by DataLoom CLI</p>
  </div>
</body>
</html>
`
