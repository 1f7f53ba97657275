package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/coursebot/backend/internal/application/ingest"
)

func newUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload [files...]",
		Short: "Ingest course material files",
		Long: `Extracts, chunks and indexes each file in order.
Stops at the first file that fails; files before it stay indexed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := a.services()
			if err != nil {
				return err
			}
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				res, err := tk.Ingest.Upload(cmd.Context(), data, filepath.Base(path))
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%s, %d chunks)\n", res.SourceName, res.Format, res.ChunkCount)
			}
			return nil
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	var (
		file string
		text string
	)
	cmd := &cobra.Command{
		Use:   "update [name]",
		Short: "Replace the content of an indexed document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := a.services()
			if err != nil {
				return err
			}
			in := ingest.UpdateInput{RawText: text}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				in.Data = data
				in.DataFilename = filepath.Base(file)
			}
			res, err := tk.Ingest.UpdateSource(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%d chunks)\n", res.SourceName, res.ChunkCount)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "file with the new content")
	cmd.Flags().StringVarP(&text, "text", "t", "", "new plain text content")
	cmd.MarkFlagsMutuallyExclusive("file", "text")
	cmd.MarkFlagsOneRequired("file", "text")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [name]",
		Short: "Remove a document and all of its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := a.services()
			if err != nil {
				return err
			}
			n, err := tk.Ingest.DeleteSource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%d chunks)\n", ingest.SourceName(args[0]), n)
			return nil
		},
	}
}

func newDeleteAllCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Remove every indexed document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete everything without --yes")
			}
			tk, err := a.services()
			if err != nil {
				return err
			}
			n, err := tk.Ingest.DeleteAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d chunks\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting every document")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := a.services()
			if err != nil {
				return err
			}
			sources, err := tk.Ingest.ListSources(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sources) == 0 {
				fmt.Fprintln(out, "No documents indexed.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tCHUNKS\tINGESTED")
			for _, s := range sources {
				ingested := "-"
				if !s.IngestedAt.IsZero() {
					ingested = s.IngestedAt.Local().Format(time.DateTime)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.SourceName, s.ContentType, s.ChunkCount, ingested)
			}
			return w.Flush()
		},
	}
}
