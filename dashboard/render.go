package dashboard

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Render writes v as a text table.
func Render(w io.Writer, v View) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Signed in as %s (%s)\n", v.User.Username, v.User.Role)
	if v.User.AccountAddress != "" {
		fmt.Fprintf(tw, "Account: %s\n", v.User.AccountAddress)
	}
	for _, n := range v.Notifications {
		fmt.Fprintf(tw, "[%s] %s\n", n.Level, n.Text)
	}
	if v.AssetTx != "" {
		fmt.Fprintf(tw, "Asset transaction: %s\n", v.AssetTx)
	}
	if v.Loading {
		fmt.Fprintln(tw, "Loading...")
	}
	fmt.Fprintln(tw)

	if len(v.Rows) == 0 {
		fmt.Fprintln(tw, "No certificates.")
		return tw.Flush()
	}

	fmt.Fprintln(tw, "ID\tTITLE\tISSUED\tSTATUS\tSCORE\tACTIONS\tCONTENT")
	for _, r := range v.Rows {
		actions := make([]string, len(r.Actions))
		for i, a := range r.Actions {
			actions[i] = string(a)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Title, r.IssuedDate, r.Status, r.Score,
			orDash(strings.Join(actions, ", ")), orDash(r.ContentURL))
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
