package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/project-registry/internal/model"
	"github.com/sells-group/project-registry/internal/report"
	"github.com/sells-group/project-registry/internal/store"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects in the registry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		filter, err := projectFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		projects, err := st.ListProjects(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "projects list")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSONOut(projects)
		}
		if len(projects) == 0 {
			fmt.Fprintln(os.Stderr, "No projects found.")
			return nil
		}
		return report.Projects(os.Stdout, projects)
	},
}

var projectsShowCmd = &cobra.Command{
	Use:   "show <project-id>",
	Short: "Show a project with its sources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := st.GetProject(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "project %s", args[0])
		}
		sources, err := st.ListSources(ctx, p.ID)
		if err != nil {
			return eris.Wrap(err, "list sources")
		}
		return report.Project(os.Stdout, p, sources)
	},
}

func projectFilterFromFlags(cmd *cobra.Command) (store.ProjectFilter, error) {
	region, _ := cmd.Flags().GetString("region")
	city, _ := cmd.Flags().GetString("city")
	category, _ := cmd.Flags().GetString("category")
	contractor, _ := cmd.Flags().GetString("contractor")
	search, _ := cmd.Flags().GetString("search")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	filter := store.ProjectFilter{
		Region:     region,
		City:       city,
		Category:   category,
		Contractor: contractor,
		Search:     search,
		Limit:      limit,
	}
	if status != "" {
		s, ok := model.ParseStatus(status)
		if !ok {
			return filter, eris.Errorf("unknown status %q", status)
		}
		filter.Status = s
	}
	return filter, nil
}

func writeJSONOut(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	f := projectsCmd.Flags()
	f.String("region", "", "filter by region")
	f.String("city", "", "filter by city")
	f.String("category", "", "filter by category")
	f.String("contractor", "", "filter by main contractor substring")
	f.String("search", "", "search name and description")
	f.String("status", "", "filter by status")
	f.Int("limit", 50, "maximum projects to list")
	f.Bool("json", false, "print projects as JSON")

	projectsCmd.AddCommand(projectsShowCmd)
	rootCmd.AddCommand(projectsCmd)
}
