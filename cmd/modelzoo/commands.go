package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"modelzoo/internal/fetch"
	"modelzoo/internal/manager"
	"modelzoo/pkg/types"
)

func newListCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List models in the descriptor directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.build()
			if err != nil {
				return err
			}
			defer c.Close()
			models := c.mgr.ListModels()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), types.ModelsResponse{Models: models})
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTASK\tFRAMEWORK\tPRECISIONS")
			for _, m := range models {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.TaskType, m.Framework, strings.Join(m.Precisions, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <model>",
		Short: "Show a model descriptor and its variants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.build()
			if err != nil {
				return err
			}
			defer c.Close()
			d, ok := c.mgr.Describe(args[0])
			if !ok {
				return manager.ErrModelNotFound(args[0])
			}
			return writeJSON(cmd.OutOrStdout(), d)
		},
	}
}

func newFetchCmd(a *app) *cobra.Command {
	var precision string
	var all bool
	cmd := &cobra.Command{
		Use:     "fetch <model>",
		Short:   "Download and verify model artifacts into the cache",
		Example: "  modelzoo fetch image-retrieval-0001 --precision FP16\n  modelzoo fetch image-retrieval-0001 --all",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.build()
			if err != nil {
				return err
			}
			defer c.Close()
			out := cmd.OutOrStdout()
			if all {
				d, ok := c.reg.Descriptor(args[0])
				if !ok {
					return manager.ErrModelNotFound(args[0])
				}
				results, err := c.fetcher.FetchAll(cmd.Context(), d)
				for _, res := range results {
					printFiles(out, string(res.Precision), res.Files)
				}
				return err
			}
			op, err := c.mgr.Fetch(cmd.Context(), args[0], precision)
			printFiles(out, string(op.Result.Precision), op.Result.Files)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "fetched %s %s in %s\n", op.Result.Model, op.Result.Precision, op.Result.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&precision, "precision", "", "Precision variant (default: first available)")
	cmd.Flags().BoolVar(&all, "all", false, "Fetch every precision variant")
	cmd.Flags().Int("fetch-concurrency", a.cfg.FetchConcurrency, "Parallel downloads")
	cmd.Flags().Duration("fetch-timeout", a.cfg.FetchTimeout.Duration, "Per-file HTTP timeout")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	var precision string
	cmd := &cobra.Command{
		Use:   "verify <model>",
		Short: "Check cached artifacts against descriptor sizes and digests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.build()
			if err != nil {
				return err
			}
			defer c.Close()
			p, sts, err := c.mgr.Verify(args[0], precision)
			if err != nil {
				return err
			}
			printFiles(cmd.OutOrStdout(), string(p), sts)
			if !fetch.AllOK(sts) {
				return fmt.Errorf("%s %s: verification failed", args[0], p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&precision, "precision", "", "Precision variant (default: first available)")
	return cmd
}

func newViewSizeCmd(a *app) *cobra.Command {
	var precision string
	cmd := &cobra.Command{
		Use:   "view-size <model>",
		Short: "Load a fetched model and print its output view size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.build()
			if err != nil {
				return err
			}
			defer c.Close()
			vs, err := c.mgr.ViewSize(cmd.Context(), args[0], precision)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), vs.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&precision, "precision", "", "Precision variant (default: first available)")
	cmd.Flags().Bool("auto-resize", a.cfg.AutoResize, "Let the runtime resize inputs")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List verified downloads recorded in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.build()
			if err != nil {
				return err
			}
			defer c.Close()
			entries, err := c.ledger.List(cmd.Context(), model)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERIFIED\tMODEL\tPRECISION\tFILE\tSIZE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", e.VerifiedAt.Format(time.RFC3339), e.Model, e.Precision, e.File, e.Size)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Only entries for this model")
	return cmd
}

func printFiles(w io.Writer, precision string, sts []fetch.FileStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, st := range sts {
		line := fmt.Sprintf("%s\t%s\t%s\t%d", precision, st.File.Name, st.Status, st.Size)
		if st.Err != nil {
			line += "\t" + st.Err.Error()
		}
		fmt.Fprintln(tw, line)
	}
	_ = tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
