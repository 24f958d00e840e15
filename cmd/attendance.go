package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Show recent attendance of an identity",
	Long: `Show the most recent check-in and check-out records of an identity.

Examples:
  face-attendance attendance --id EMP001 --limit 20`,
	RunE: runAttendance,
}

func init() {
	rootCmd.AddCommand(attendanceCmd)

	attendanceCmd.Flags().String("id", "", "Identity id, e.g. EMP001")
	attendanceCmd.Flags().Int("limit", constants.DefaultRecentLimit, "Number of records to show")
	attendanceCmd.MarkFlagRequired("id")
}

func runAttendance(cmd *cobra.Command, args []string) error {
	id := mustGetString(cmd, "id")
	limit := mustGetInt(cmd, "limit")

	ctx := context.Background()
	if err := initDatabase(config.Load()); err != nil {
		return err
	}
	recorder, err := database.GetAttendanceRecorder(ctx)
	if err != nil {
		return err
	}

	records, err := recorder.RecentAttendance(ctx, id, limit)
	if err != nil {
		return fmt.Errorf("failed to list attendance: %w", err)
	}
	if len(records) == 0 {
		fmt.Printf("No attendance recorded for %s.\n", id)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tDEVICE\tDISTANCE")
	fmt.Fprintln(w, "----\t----\t------\t--------")
	for _, rec := range records {
		distance := "-"
		if rec.Distance != nil {
			distance = fmt.Sprintf("%.4f", *rec.Distance)
		}
		device := rec.DeviceID
		if device == "" {
			device = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.ServerTime.Local().Format(time.DateTime), rec.Type, device, distance)
	}
	w.Flush()
	return nil
}
