package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/psds-microservice/issue-tracker/internal/model"
	"github.com/psds-microservice/issue-tracker/internal/repository"
	"github.com/psds-microservice/issue-tracker/internal/service"
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Inspect issues directly in storage",
}

var issuesListCmd = &cobra.Command{
	Use:   "list <project>",
	Short: "List the issues of a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runIssuesList,
}

var (
	listOpen       string
	listAssignedTo string
	listCreatedBy  string
)

func init() {
	issuesListCmd.Flags().StringVar(&listOpen, "open", "", "Filter by open state (true or false)")
	issuesListCmd.Flags().StringVar(&listAssignedTo, "assigned-to", "", "Filter by assignee")
	issuesListCmd.Flags().StringVar(&listCreatedBy, "created-by", "", "Filter by creator")
	issuesCmd.AddCommand(issuesListCmd)
}

func runIssuesList(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := repository.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()

	filters := map[string]string{
		model.FieldOpen:       listOpen,
		model.FieldAssignedTo: listAssignedTo,
		model.FieldCreatedBy:  listCreatedBy,
	}
	issues, err := service.NewIssueService(store, nil).List(ctx, args[0], filters)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		fmt.Fprintf(os.Stdout, "No issues in project %s\n", args[0])
		return nil
	}
	return renderIssues(os.Stdout, issues)
}

var (
	openColor   = color.New(color.FgHiGreen).SprintFunc()
	closedColor = color.New(color.FgHiRed).SprintFunc()
)

func renderIssues(w io.Writer, issues []model.Issue) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header([]string{"ID", "Title", "Created By", "Assigned To", "Status", "Open", "Updated"})
	for _, is := range issues {
		open := closedColor("closed")
		if is.Open {
			open = openColor("open")
		}
		_ = table.Append([]string{
			is.ID,
			is.IssueTitle,
			is.CreatedBy,
			is.AssignedTo,
			is.StatusText,
			open,
			is.UpdatedOn.Format("2006-01-02 15:04"),
		})
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, strconv.Itoa(len(issues))+" issue(s)")
	return err
}
