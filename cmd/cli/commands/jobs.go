package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/celestiaorg/docconv/internal/settings"
	"github.com/celestiaorg/docconv/pkg/api/v1/handlers"
	"github.com/celestiaorg/docconv/pkg/models"
	"github.com/celestiaorg/docconv/pkg/types"
)

const timeFormat = "2006-01-02 15:04:05"

func newJobsCmd() *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:               "jobs",
		Short:             "Manage conversion jobs",
		PersistentPreRunE: clientPreRun,
	}
	jobsCmd.AddCommand(newSubmitJobCmd())
	jobsCmd.AddCommand(newGetJobCmd())
	jobsCmd.AddCommand(newListJobsCmd())
	jobsCmd.AddCommand(newCancelJobCmd())
	jobsCmd.AddCommand(newWaitJobCmd())
	return jobsCmd
}

func newSubmitJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Upload a document for conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("error reading file: %w", err)
			}

			pairs, _ := cmd.Flags().GetStringArray(flagSetting)
			fields, err := parseSettings(pairs)
			if err != nil {
				return err
			}
			if id, _ := cmd.Flags().GetString("id"); id != "" {
				fields[handlers.FormID] = id
			}
			if output, _ := cmd.Flags().GetString("output"); output != "" {
				fields[handlers.FormOutput] = output
			}
			if password, _ := cmd.Flags().GetString("password"); password != "" {
				fields[settings.KeyPassword] = password
			}

			resp, err := apiClient.UploadJob(cmd.Context(), filepath.Base(args[0]), content, fields)
			if err != nil {
				return fmt.Errorf("error submitting job: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s (%s)\n", resp.ID, colorState(resp.State))

			if wait, _ := cmd.Flags().GetBool("wait"); wait {
				interval, _ := cmd.Flags().GetDuration("interval")
				return waitForJob(cmd, resp.ID, interval)
			}
			return nil
		},
	}
	cmd.Flags().String("id", "", "Job ID to use instead of a generated one")
	cmd.Flags().String("output", "", "Output method: local or remote")
	cmd.Flags().String("password", "", "Password of a protected PDF")
	cmd.Flags().StringArray(flagSetting, nil, "Conversion setting as key=value (repeatable)")
	cmd.Flags().Bool("wait", false, "Wait until the job finishes")
	cmd.Flags().Duration("interval", time.Second, "Polling interval used with --wait")
	return cmd
}

func newGetJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := apiClient.GetJob(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error fetching job: %w", err)
			}
			renderJob(cmd, job)
			return nil
		},
	}
}

func newListJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, _ := cmd.Flags().GetInt("page")
			state, _ := cmd.Flags().GetString("state")

			params := handlers.JobListParams{Page: page, State: state}
			if err := params.Validate(); err != nil {
				return err
			}
			resp, err := apiClient.GetJobs(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("error fetching jobs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(resp.Rows) == 0 {
				fmt.Fprintln(out, "No jobs found.")
				return nil
			}

			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"ID", "State", "Pages", "Error", "Created At"})
			table.SetBorder(true)
			for _, job := range resp.Rows {
				table.Append([]string{
					job.ID,
					colorState(job.State),
					pagesOf(job),
					errorOf(job),
					job.CreatedAt.Format(timeFormat),
				})
			}
			table.Render()
			fmt.Fprintf(out, "Page %d, %d of %d jobs\n", resp.Pagination.Page, len(resp.Rows), resp.Pagination.Total)
			return nil
		},
	}
	cmd.Flags().IntP("page", "p", 1, "Page number for pagination")
	cmd.Flags().String("state", "", "Filter by state (queued, processing, processed, error)")
	return cmd
}

func newCancelJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.CancelJob(cmd.Context(), handlers.JobCancelParams{ID: args[0]}); err != nil {
				return fmt.Errorf("error cancelling job: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s\n", args[0])
			return nil
		},
	}
}

func newWaitJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait <id>",
		Short: "Wait until a job reaches processed or error",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("interval")
			return waitForJob(cmd, args[0], interval)
		},
	}
	cmd.Flags().Duration("interval", time.Second, "Polling interval")
	return cmd
}

// waitForJob polls until the job is terminal and fails when it ended in error
func waitForJob(cmd *cobra.Command, id string, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := apiClient.GetJob(ctx, id)
		if err != nil {
			return fmt.Errorf("error fetching job: %w", err)
		}
		if job.State.IsTerminal() {
			renderJob(cmd, job)
			if job.State == models.JobStateError {
				return fmt.Errorf("job %s failed: [%d] %s", id, job.ErrorCode, job.ErrorMessage)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func renderJob(cmd *cobra.Command, job types.JobResponse) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Field", "Value"})
	table.SetAutoWrapText(false)
	table.Append([]string{"ID", job.ID})
	table.Append([]string{"State", colorState(job.State)})
	if job.State == models.JobStateError {
		table.Append([]string{"Error", errorOf(job)})
	}
	table.Append([]string{"Created At", job.CreatedAt.Format(timeFormat)})
	table.Append([]string{"Updated At", job.UpdatedAt.Format(timeFormat)})
	for _, k := range sortedKeys(job.CustomFields) {
		table.Append([]string{k, job.CustomFields[k]})
	}
	for _, k := range sortedKeys(job.Settings) {
		table.Append([]string{"setting " + k, job.Settings[k]})
	}
	table.Render()
}

func colorState(state models.JobState) string {
	switch state {
	case models.JobStateProcessed:
		return color.GreenString(state.String())
	case models.JobStateError:
		return color.RedString(state.String())
	case models.JobStateProcessing:
		return color.YellowString(state.String())
	default:
		return state.String()
	}
}

func pagesOf(job types.JobResponse) string {
	total, ok := job.CustomFields[models.FieldPageCount]
	if !ok {
		return "-"
	}
	done := job.CustomFields[models.FieldPagesConverted]
	if done == "" {
		done = "0"
	}
	if job.State == models.JobStateProcessed {
		done = total
	}
	return done + "/" + total
}

func errorOf(job types.JobResponse) string {
	if job.ErrorCode == 0 {
		return ""
	}
	return "[" + strconv.Itoa(job.ErrorCode) + "] " + job.ErrorMessage
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
