package logs

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/crucial707/logsink/cmd/cli/client"
	"github.com/crucial707/logsink/cmd/cli/output"
	"github.com/crucial707/logsink/internal/models"
)

// ==========================
// Init Logs
// ==========================
func InitLogs(rootCmd *cobra.Command) {
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Ingest and query log records",
	}

	logsCmd.AddCommand(
		createLogCmd(),
		listLogsCmd(),
		getLogCmd(),
		updateLogCmd(),
		deleteLogCmd(),
	)

	rootCmd.AddCommand(logsCmd)
}

func addRecordFlags(cmd *cobra.Command, in *models.LogInput) {
	cmd.Flags().StringVar(&in.Domain, "domain", "", "domain the record came from")
	cmd.Flags().StringVar(&in.IPAddress, "ip", "", "source IP address")
	cmd.Flags().StringVar(&in.ServiceName, "service", "", "service name")
	cmd.Flags().StringVar(&in.Message, "message", "", "log message")
	cmd.Flags().StringVar(&in.Severity, "severity", "", "severity, e.g. info or error")
	for _, f := range []string{"domain", "ip", "service", "message", "severity"} {
		_ = cmd.MarkFlagRequired(f)
	}
}

// ==========================
// CREATE
// ==========================
func createLogCmd() *cobra.Command {
	var in models.LogInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Ingest a log record",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.Authenticated()
			if err != nil {
				return err
			}

			var rec models.LogRecord
			if err := c.JSON("POST", "/logs/", in, &rec); err != nil {
				return err
			}
			return printLogs(cmd, rec, []models.LogRecord{rec})
		},
	}

	addRecordFlags(cmd, &in)
	output.AddJSONFlag(cmd)
	return cmd
}

// ==========================
// LIST
// ==========================
func listLogsCmd() *cobra.Command {
	var severity string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List log records, optionally by severity",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.Authenticated()
			if err != nil {
				return err
			}

			q := url.Values{}
			if severity != "" {
				q.Set("severity", severity)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				q.Set("offset", strconv.Itoa(offset))
			}
			path := "/logs/"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var recs []models.LogRecord
			if err := c.JSON("GET", path, nil, &recs); err != nil {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) && apiErr.Status == 404 {
					recs = nil
				} else {
					return err
				}
			}
			if recs == nil {
				recs = []models.LogRecord{}
			}
			return printLogs(cmd, recs, recs)
		},
	}

	cmd.Flags().StringVar(&severity, "severity", "", "only records with this severity")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of records (server default 100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of records to skip")
	output.AddJSONFlag(cmd)
	return cmd
}

// ==========================
// GET
// ==========================
func getLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one log record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := client.Authenticated()
			if err != nil {
				return err
			}

			var rec models.LogRecord
			if err := c.JSON("GET", fmt.Sprintf("/logs/%d", id), nil, &rec); err != nil {
				return err
			}
			return printLogs(cmd, rec, []models.LogRecord{rec})
		},
	}
	output.AddJSONFlag(cmd)
	return cmd
}

// ==========================
// UPDATE (admin)
// ==========================
func updateLogCmd() *cobra.Command {
	var in models.LogInput

	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Replace a log record (administrators only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := client.Authenticated()
			if err != nil {
				return err
			}

			var rec models.LogRecord
			if err := c.JSON("PUT", fmt.Sprintf("/logs/%d", id), in, &rec); err != nil {
				return err
			}
			return printLogs(cmd, rec, []models.LogRecord{rec})
		},
	}

	addRecordFlags(cmd, &in)
	output.AddJSONFlag(cmd)
	return cmd
}

// ==========================
// DELETE (admin)
// ==========================
func deleteLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a log record (administrators only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := client.Authenticated()
			if err != nil {
				return err
			}

			if err := c.JSON("DELETE", fmt.Sprintf("/logs/%d", id), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Log %d deleted\n", id)
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid log id %q", s)
	}
	return id, nil
}

func printLogs(cmd *cobra.Command, raw interface{}, recs []models.LogRecord) error {
	if output.WantJSON(cmd) {
		return output.RenderJSON(cmd.OutOrStdout(), raw)
	}
	output.RenderLogs(cmd.OutOrStdout(), recs)
	return nil
}
