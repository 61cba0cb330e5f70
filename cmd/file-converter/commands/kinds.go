package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/file-converter/cmd/file-converter/ui"
	"github.com/spherical/file-converter/internal/convert"
	"github.com/spherical/file-converter/internal/pdf"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the supported conversion kinds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := make([][]string, 0, len(convert.AllKinds()))
		for _, k := range convert.AllKinds() {
			available := "yes"
			if k == convert.KindPDFToImages && !pdf.Available() {
				available = "no (built without MuPDF)"
			}
			rows = append(rows, []string{k.String(), k.Description(), available})
		}
		ui.Table([]string{"KIND", "DESCRIPTION", "AVAILABLE"}, rows)
		return nil
	},
}
