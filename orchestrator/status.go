package orchestrator

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mahrens917/aws-sub001/progress"
	"github.com/mahrens917/aws-sub001/store"
)

// PrintStatus writes a human-readable table of the current phase and every
// bucket's substate to w.
func PrintStatus(w io.Writer, st *store.Store) error {
	phase, err := st.CurrentPhase()
	if err != nil {
		fmt.Fprintln(w, "phase: unknown (state metadata missing or corrupt)")
	} else {
		fmt.Fprintf(w, "phase: %s\n", phase)
	}

	buckets, err := st.GetAllBuckets()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BUCKET\tFILES\tSIZE\tSCAN\tSYNC\tVERIFY\tDELETE")
	for _, rec := range buckets {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			rec.Bucket, rec.FileCount, progress.FormatBytes(rec.TotalSize),
			checkmark(rec.ScanComplete), checkmark(rec.SyncComplete),
			checkmark(rec.VerifyComplete), checkmark(rec.DeleteComplete))
	}
	return tw.Flush()
}

func checkmark(done bool) string {
	if done {
		return "done"
	}
	return "pending"
}
