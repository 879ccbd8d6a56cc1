package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"

	"github.com/panbanda/esmaudit/pkg/analyzer/walker"
	"github.com/panbanda/esmaudit/pkg/stats"
)

// Failure is a file that could not be read or parsed.
type Failure struct {
	Path  string `json:"path" toon:"path"`
	Error string `json:"error" toon:"error"`
}

// AuditData is the serialized form of an Audit.
type AuditData struct {
	Stats    stats.Stats `json:"stats" toon:"stats"`
	Packages []string    `json:"packages,omitempty" toon:"packages,omitempty"`
	Failures []Failure   `json:"failures,omitempty" toon:"failures,omitempty"`
}

// Audit renders the outcome of one traversal.
type Audit struct {
	Title string
	Data  AuditData
}

// AuditOptions selects the optional report sections.
type AuditOptions struct {
	ListPackages bool
	ListFailures bool
}

// NewAudit builds a report from a traversal result.
func NewAudit(res walker.Result, opts AuditOptions) *Audit {
	a := &Audit{
		Title: "Module System Audit",
		Data:  AuditData{Stats: res.Stats},
	}
	if opts.ListPackages {
		a.Data.Packages = res.Packages
	}
	if opts.ListFailures {
		for _, f := range res.Failures {
			a.Data.Failures = append(a.Data.Failures, Failure{Path: f.Path, Error: f.Err.Error()})
		}
	}
	return a
}

func (a *Audit) RenderData() any {
	return a.Data
}

// tables splits the report into its text and markdown sections.
func (a *Audit) tables() []*Table {
	s := a.Data.Stats
	out := []*Table{{
		Title:   "Summary",
		Headers: []string{"Metric", "Count"},
		Rows: [][]string{
			{"packages", count(s.Packages)},
			{"files", count(s.Files)},
			{"esm", count(s.ESM)},
			{"dynamic_import", count(s.DynamicImport)},
			{"cjs", count(s.CJS)},
			{"non_static_exports", count(s.NonStaticExports)},
			{"non_static_deps", count(s.NonStaticDeps)},
			{"errors", count(s.Errors)},
		},
	}}

	if len(a.Data.Packages) > 0 {
		rows := make([][]string, len(a.Data.Packages))
		for i, p := range a.Data.Packages {
			rows[i] = []string{p}
		}
		out = append(out, &Table{Title: "Packages", Headers: []string{"Path"}, Rows: rows})
	}

	if len(a.Data.Failures) > 0 {
		rows := make([][]string, len(a.Data.Failures))
		for i, f := range a.Data.Failures {
			rows[i] = []string{f.Path, f.Error}
		}
		out = append(out, &Table{Title: "Failures", Headers: []string{"Path", "Error"}, Rows: rows})
	}
	return out
}

func (a *Audit) RenderText(w io.Writer, colored bool) error {
	writeHeading(w, a.Title, "=", colored, color.Bold, color.FgCyan)
	for _, t := range a.tables() {
		if err := t.RenderText(w, colored); err != nil {
			return err
		}
	}
	return nil
}

func (a *Audit) RenderMarkdown(w io.Writer) error {
	if a.Title != "" {
		fmt.Fprintf(w, "# %s\n\n", a.Title)
	}
	for _, t := range a.tables() {
		if err := t.RenderMarkdown(w); err != nil {
			return err
		}
	}
	return nil
}

func count(n uint32) string {
	return strconv.FormatUint(uint64(n), 10)
}
