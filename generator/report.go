package generator

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/ardanlabs/impeller-interop/model"
)

// WriteReport prints one row per function of m: its class, owning handle
// and whether it got a safe wrapper.
func WriteReport(w io.Writer, m *model.Model, res *Result) {
	skipped := make(map[string]Ineligible, len(res.Warnings))
	for _, in := range res.Warnings {
		skipped[in.Function] = in
	}

	var data [][]string
	for _, f := range m.Functions {
		owner := "-"
		if f.Owner != nil {
			owner = f.Owner.Name
		}

		status := "wrapped"
		switch in, ok := skipped[f.Name]; {
		case ok:
			status = in.Eligibility.String()
		case f.IsLifecycle():
			status = "lifecycle"
		case f.Class == model.ClassGlobal:
			status = "raw"
		}

		data = append(data, []string{f.Name, f.Class.String(), owner, status})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"FUNCTION", "CLASS", "HANDLE", "STATUS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoWrapText(false)
	table.AppendBulk(data)
	table.Render()
}
