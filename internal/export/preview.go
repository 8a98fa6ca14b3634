package export

import (
	"fmt"
	"strings"

	"github.com/ashureev/wms-askbot/internal/datasource"
	"github.com/olekukonko/tablewriter"
)

// PreviewRows is the number of rows shown in the transcript.
const PreviewRows = 20

// RenderPreview renders the first limit rows of rs as a fixed-width table.
func RenderPreview(rs *datasource.ResultSet, limit int) string {
	var sb strings.Builder

	table := tablewriter.NewWriter(&sb)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(true)
	table.SetHeader(rs.Columns)

	n := min(limit, len(rs.Rows))
	for _, row := range rs.Rows[:n] {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		table.Append(cells)
	}
	table.Render()

	if len(rs.Rows) > n {
		fmt.Fprintf(&sb, "... and %d more rows\n", len(rs.Rows)-n)
	}
	return sb.String()
}
