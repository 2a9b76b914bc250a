package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"report_catalog/internal/catalog/format"
	"report_catalog/internal/domain/report"

	"github.com/spf13/cobra"
)

func newSourcesCommand(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List report sources in catalog order",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, _ []string, env *Env) error {
			out := cmd.OutOrStdout()
			localID := env.Catalog.Local().ID()

			for _, src := range env.Catalog.Sources() {
				kind := "remote"
				if src.ID() == localID {
					kind = "local"
				}
				fmt.Fprintf(out, "%s\t%s\n", src.ID(), kind)
			}

			status := env.Catalog.Status()
			for _, f := range status.Failures {
				fmt.Fprintf(out, "failed\t%s: %s\n", f.SourceID, f.Reason)
			}
			fmt.Fprintf(out, "status\t%s\n", status.Status)
			return nil
		}),
	}
}

func newListCommand(run runner) *cobra.Command {
	var (
		sourceID string
		online   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports of all sources or of one source",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, _ []string, env *Env) error {
			ctx := cmd.Context()
			var reports []report.Definition
			switch {
			case sourceID != "" && online:
				reports = env.Catalog.OnlineReports(ctx, sourceID)
			case sourceID != "":
				reports = env.Catalog.Reports(ctx, sourceID)
			case online:
				reports = env.Catalog.AllOnlineReports(ctx)
			default:
				reports = env.Catalog.AllReports(ctx)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tENGINE\tSERVICE\tONLINE")
			for _, r := range reports {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", r.ID, r.DisplayName, r.Engine, r.ReportService, r.Online)
			}
			return tw.Flush()
		}),
	}

	cmd.Flags().StringVarP(&sourceID, "source", "s", "", "only list reports of this source")
	cmd.Flags().BoolVar(&online, "online", false, "only list online reports")
	return cmd
}

func newShowCommand(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "show <reportId>",
		Short: "Show display name, engine and backing service of a report",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string, env *Env) error {
			ctx := cmd.Context()
			id := args[0]

			name := env.Catalog.DisplayName(ctx, id)
			engine := env.Catalog.Engine(ctx, id)
			service := env.Catalog.ReportService(ctx, id)
			if name == "" && engine == "" && service == "" {
				return fmt.Errorf("report %s not found", id)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:      %s\n", id)
			fmt.Fprintf(out, "name:    %s\n", name)
			fmt.Fprintf(out, "engine:  %s\n", engine)
			fmt.Fprintf(out, "service: %s\n", service)
			return nil
		}),
	}
}

func newTemplateCommand(run runner) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "template <reportId>",
		Short: "Write the template of a report to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(cmd *cobra.Command, args []string, env *Env) error {
			rc := env.Catalog.Template(cmd.Context(), args[0])
			if rc == nil {
				return fmt.Errorf("template of report %s not found", args[0])
			}
			defer rc.Close()

			return writeOutput(cmd, outPath, func(w io.Writer) error {
				_, err := io.Copy(w, rc)
				return err
			})
		}),
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func newCatalogCommand(run runner) *cobra.Command {
	var (
		outFormat string
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the whole catalog as text or export it as XLSX",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, _ []string, env *Env) error {
			var render func(w io.Writer) error
			switch outFormat {
			case "text":
				render = func(w io.Writer) error { return format.Text(cmd.Context(), w, env.Catalog) }
			case "xlsx":
				render = func(w io.Writer) error { return format.XLSX(cmd.Context(), w, env.Catalog) }
			default:
				return fmt.Errorf("unknown format %q, want text or xlsx", outFormat)
			}
			return writeOutput(cmd, outPath, render)
		}),
	}

	cmd.Flags().StringVarP(&outFormat, "format", "f", "text", "output format: text or xlsx")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func newRegisterCommand(run runner) *cobra.Command {
	var (
		def          report.Definition
		reportFormat string
		templatePath string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Add or update a report of the local source",
		Args:  cobra.NoArgs,
		RunE: run(func(cmd *cobra.Command, _ []string, env *Env) error {
			def.Format = report.Format(reportFormat)

			var template io.Reader
			if templatePath != "" {
				f, err := os.Open(templatePath)
				if err != nil {
					return fmt.Errorf("open template: %w", err)
				}
				defer f.Close()
				template = f
			}

			if err := env.Local.Register(cmd.Context(), def, template); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s_%s\n", env.Local.ID(), def.ID)
			return nil
		}),
	}

	flags := cmd.Flags()
	flags.StringVar(&def.ID, "id", "", "report id within the local source")
	flags.StringVar(&def.DisplayName, "name", "", "display name")
	flags.StringVar(&def.Description, "description", "", "description")
	flags.StringVar(&def.Engine, "engine", "", "rendering engine name")
	flags.StringVar(&def.ReportService, "service", "", "backing report service name")
	flags.StringVar(&reportFormat, "format", string(report.FormatJRXML), "template format")
	flags.BoolVar(&def.Online, "online", false, "mark the report as online")
	flags.BoolVar(&def.AllowAccess, "allow-access", true, "allow access to the report")
	flags.StringVar(&templatePath, "template", "", "template file to store with the report")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("engine")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

// writeOutput writes to path, or to the command output when path is empty.
func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
