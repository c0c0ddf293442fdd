package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// TableFormatter formats the plan as a human-readable table.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatPlan formats the plan entries as a table.
func (f *TableFormatter) FormatPlan(entries []PlanEntry) (string, error) {
	if len(entries) == 0 {
		return "No VMs in list\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tGUEST\tCPU\tSOCKETS\tCORES/SOCKET\tMEMORY\tDISK\tNETWORK\tDATASTORE\tTASKSEQ\tGPU")
	}

	for _, e := range entries {
		gpu := "-"
		if e.Spec.HasGPUProfile() {
			gpu = e.Spec.GPUProfile
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d GB\t%d GB\t%s\t%s\t%s\t%s\n",
			e.Spec.Name,
			e.Spec.GuestID,
			e.Spec.CPUCount,
			e.Layout.Sockets,
			e.Layout.CoresPerSocket,
			e.Spec.MemoryGB,
			e.Spec.DiskSizeGB,
			e.Spec.Network,
			e.Spec.Datastore,
			e.Spec.TaskSequenceID,
			gpu,
		)
	}

	_ = w.Flush()
	return buf.String(), nil
}
