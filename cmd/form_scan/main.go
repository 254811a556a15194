// Command form_scan classifies form fields and transforms profile values from
// the command line, using the same service as the MCP server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-form-reader/internal/config"
	"github.com/a3tai/mcp-form-reader/internal/logging"
	"github.com/a3tai/mcp-form-reader/internal/service"
)

const (
	formatText = "text"
	formatJSON = "json"
)

type options struct {
	format  string
	verbose bool
	rules   string
	chrome  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "form_scan",
		Short: "Discover and classify form fields in HTML pages and PDF AcroForms",
		Long: `form_scan finds the fillable fields of a form, ranks candidate types for
each of them and shows why. It reads saved HTML pages, fillable PDFs and
live pages opened in Chrome.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != formatText && opts.format != formatJSON {
				return fmt.Errorf("unknown format %q, want text or json", opts.format)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.format, "format", "f", formatText, "Output format: text or json")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log progress to stderr")
	flags.StringVar(&opts.rules, "rules", "", "YAML file of extra label rules")
	flags.StringVar(&opts.chrome, "chrome", "", "DevTools URL of a running Chrome (default: launch headless)")

	root.AddCommand(
		newScanCmd(opts),
		newDirCmd(opts),
		newURLCmd(opts),
		newTransformCmd(opts),
	)
	return root
}

func newScanCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <file>",
		Short: "Classify the fields of an HTML or PDF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			svc, err := opts.service(filepath.Dir(abs))
			if err != nil {
				return err
			}
			defer svc.Close()

			result, err := svc.ScanFile(service.ScanFileRequest{Path: abs})
			if err != nil {
				return err
			}
			return opts.write(cmd.OutOrStdout(), result, func(w io.Writer) { writeScan(w, result) })
		},
	}
}

func newDirCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "dir [directory]",
		Short: "Classify the fields of every form in a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			abs, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			svc, err := opts.service(abs)
			if err != nil {
				return err
			}
			defer svc.Close()

			result, err := svc.ScanDirectory(cmd.Context(), service.ScanDirectoryRequest{Directory: abs, Limit: limit})
			if err != nil {
				return err
			}
			return opts.write(cmd.OutOrStdout(), result, func(w io.Writer) {
				for i := range result.Files {
					writeScan(w, &result.Files[i])
					fmt.Fprintln(w)
				}
				for _, e := range result.Errors {
					fmt.Fprintf(w, "error: %s\n", e)
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of files to scan")
	return cmd
}

func newURLCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "url <address>",
		Short: "Open a page in Chrome and classify its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			svc, err := opts.service(wd)
			if err != nil {
				return err
			}
			defer svc.Close()

			result, err := svc.ScanURL(cmd.Context(), service.ScanURLRequest{URL: args[0]})
			if err != nil {
				return err
			}
			return opts.write(cmd.OutOrStdout(), result, func(w io.Writer) { writeScan(w, result) })
		},
	}
}

func newTransformCmd(opts *options) *cobra.Command {
	var (
		req     service.TransformRequest
		choices string
	)
	cmd := &cobra.Command{
		Use:   "transform <value>",
		Short: "Convert a profile value into the variant a field expects",
		Example: `  form_scan transform --source PHONE --placeholder "(555) 555-5555" +14155551234
  form_scan transform --source GRAD_DATE --options "April,May,June" 2024-05-15`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			svc, err := opts.service(wd)
			if err != nil {
				return err
			}
			defer svc.Close()

			req.Value = args[0]
			if choices != "" {
				for _, o := range strings.Split(choices, ",") {
					req.Target.Options = append(req.Target.Options, strings.TrimSpace(o))
				}
			}
			result, err := svc.TransformValue(req)
			if err != nil {
				return err
			}
			return opts.write(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintln(w, result.Value)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.Source, "source", "", "Type of the value, e.g. FULL_NAME, PHONE, GRAD_DATE")
	flags.StringVar(&req.TargetType, "target-type", "", "Classified type of the target field")
	flags.StringVar(&req.Target.Label, "label", "", "Target field label")
	flags.StringVar(&req.Target.Name, "name", "", "Target name attribute")
	flags.StringVar(&req.Target.Type, "type", "", "Target input type")
	flags.StringVar(&req.Target.Placeholder, "placeholder", "", "Target placeholder")
	flags.IntVar(&req.Target.MaxLength, "max-length", 0, "Target maxlength")
	flags.StringVar(&choices, "options", "", "Comma separated option texts of a choice field")
	flags.StringVar(&req.Target.Widget, "widget", "", "Widget kind: text, textarea, select, radio, checkbox, date or combobox")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

// service builds a form service confined to dir
func (o *options) service(dir string) (*service.Service, error) {
	logger, err := logging.Console(o.verbose)
	if err != nil {
		return nil, err
	}
	cfg := config.DefaultConfig()
	cfg.FormDirectory = dir
	cfg.RulesFile = o.rules
	cfg.ChromeURL = o.chrome
	logger.Debug("configuration", zap.Stringer("config", cfg))
	return service.New(cfg, logger)
}

func (o *options) write(w io.Writer, v any, text func(io.Writer)) error {
	if o.format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func writeScan(w io.Writer, result *service.ScanResult) {
	fmt.Fprintf(w, "%s (%s): %d fillable of %d candidates\n",
		result.Source, result.Kind, result.Stats.Fillable, result.Stats.Candidates)
	if len(result.Fields) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOCATOR\tLABEL\tWIDGET\tTYPE\tSCORE\tREASONS")
	for _, f := range result.Fields {
		best := f.Best()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
			f.Locator, f.LabelText, f.WidgetSignature.Kind, best.Type, best.Score, strings.Join(best.Reasons, "; "))
	}
	_ = tw.Flush()
}
