package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/crucial707/logsink/internal/models"
)

// RenderTable prints a pretty table to w
func RenderTable(w io.Writer, headers []string, rows [][]interface{}) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := table.Row{}
	for _, h := range headers {
		headerRow = append(headerRow, h)
	}
	t.AppendHeader(headerRow)

	for _, row := range rows {
		t.AppendRow(table.Row(row))
	}

	t.Render()
}

// RenderJSON prints v indented.
func RenderJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

var logHeaders = []string{"ID", "Timestamp", "Severity", "Service", "Domain", "IP", "Message"}

func RenderLogs(w io.Writer, logs []models.LogRecord) {
	rows := make([][]interface{}, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, []interface{}{
			l.ID,
			l.Timestamp.Local().Format("2006-01-02 15:04:05"),
			l.Severity,
			l.ServiceName,
			l.Domain,
			l.IPAddress,
			l.Message,
		})
	}
	RenderTable(w, logHeaders, rows)
}

func RenderUser(w io.Writer, u models.User) {
	RenderTable(w, []string{"ID", "Username", "Admin", "Created"}, [][]interface{}{
		{u.ID, u.Username, u.IsAdmin, u.CreatedAt.Local().Format("2006-01-02 15:04:05")},
	})
}

// AddJSONFlag adds --json to a command that prints results.
func AddJSONFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "print raw JSON instead of a table")
}

func WantJSON(cmd *cobra.Command) bool {
	v, err := cmd.Flags().GetBool("json")
	return err == nil && v
}
