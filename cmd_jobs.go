package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"logistria/internal/domain"
	"logistria/internal/service"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage saved import jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved import jobs",
	Args:  cobra.NoArgs,
	RunE:  listJobs,
}

var jobsAddCmd = &cobra.Command{
	Use:   "add <name> <target> <file>",
	Short: "Save an import job",
	Long: `Saves a job that imports <file> into <target>.

Examples:
  logistria jobs add nightly-stock inventory /data/stock.csv --schedule "0 2 * * *"
  logistria jobs add fleet logistics_vehicles /data/fleet.xlsx --watch`,
	Args: cobra.ExactArgs(3),
	RunE: addJob,
}

var jobsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a saved import job and its run history",
	Args:  cobra.ExactArgs(1),
	RunE:  removeJob,
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Run a saved import job now",
	Args:  cobra.ExactArgs(1),
	RunE:  runJob,
}

var (
	jobSchedule string
	jobWatch    bool
	jobDisabled bool
)

func init() {
	jobsAddCmd.Flags().StringVar(&jobSchedule, "schedule", "", "Cron expression to run the job on")
	jobsAddCmd.Flags().BoolVar(&jobWatch, "watch", false, "Run the job whenever the file changes")
	jobsAddCmd.Flags().BoolVar(&jobDisabled, "disabled", false, "Save the job without enabling its trigger")
	jobsAddCmd.MarkFlagsMutuallyExclusive("schedule", "watch")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsAddCmd)
	jobsCmd.AddCommand(jobsRmCmd)
	jobsCmd.AddCommand(jobsRunCmd)
}

func listJobs(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	jobs, err := rt.imports.ListJobs()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTARGET\tTRIGGER\tENABLED\tLAST RUN\tSTATUS")
	for _, j := range jobs {
		trigger := j.TriggerType
		if j.TriggerType == domain.TriggerSchedule {
			trigger += " " + j.TriggerConfig
		}
		lastRun := "-"
		if !j.LastRunAt.IsZero() {
			lastRun = j.LastRunAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n", j.ID, j.Name, j.Target, trigger, j.Enabled, lastRun, j.LastStatus)
	}
	return w.Flush()
}

func addJob(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	input := service.CreateImportJobInput{
		Name:     args[0],
		Target:   args[1],
		FilePath: args[2],
		Enabled:  !jobDisabled,
	}
	switch {
	case jobSchedule != "":
		input.TriggerType = domain.TriggerSchedule
		input.TriggerConfig = jobSchedule
	case jobWatch:
		input.TriggerType = domain.TriggerFileWatch
	}

	job, err := rt.imports.CreateJob(cmd.Context(), input)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved job %s (%s)\n", job.ID, job.TriggerType)
	return nil
}

func removeJob(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.imports.DeleteJob(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %s\n", args[0])
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.imports.RunJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Successfully imported %d records into %s\n", result.RowsWritten, result.Collection)
	return nil
}
