package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mlpx/internal/storage"
	"mlpx/pkg/mlpx"
)

func newArchiveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Store and retrieve documents in the configured archive",
	}
	cmd.AddCommand(
		newArchivePutCommand(a),
		newArchiveGetCommand(a),
		newArchiveListCommand(a),
		newArchiveDeleteCommand(a),
	)
	return cmd
}

func newArchivePutCommand(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Archive a document and print its entry id",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			m, err := a.manager(args[0])
			if err != nil {
				return err
			}
			if name == "" && args[0] != "-" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			entry, err := storage.NewEntry(name, m, time.Now())
			if err != nil {
				return err
			}
			store, done, err := a.openStore()
			if err != nil {
				return err
			}
			defer done()
			if err := store.SaveDocument(a.ctx, entry); err != nil {
				return fmt.Errorf("archive %s: %w", args[0], err)
			}
			a.logger.Info("archived document", "id", entry.ID, "name", entry.Name, "bytes", entry.Size)
			if !storage.Persistent(a.cfg.Store) {
				a.logger.Warn("archive backend does not keep entries after this command exits", "store", a.cfg.Store)
			}
			fmt.Fprintln(a.stdout, entry.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "entry name; defaults to the file name")
	return cmd
}

func newArchiveGetCommand(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Write an archived document to a file or stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, done, err := a.openStore()
			if err != nil {
				return err
			}
			defer done()
			entry, ok, err := store.GetDocument(a.ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no archived document with id %s", args[0])
			}
			m, err := storage.DecodeEntry(entry)
			if err != nil {
				return err
			}
			return a.write(mlpx.FromManager(m, mlpx.WithLogger(a.logger)), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, or '-' for stdout")
	return cmd
}

func newArchiveListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived documents, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			store, done, err := a.openStore()
			if err != nil {
				return err
			}
			defer done()
			entries, err := store.ListDocuments(a.ctx)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(a.stdout, "%s\t%s\t%s\t%d snapshots\t%s\n",
					e.ID, e.Name, e.CreatedAt.Format(time.RFC3339), e.Snapshots, humanize.Bytes(uint64(e.Size)))
			}
			return nil
		},
	}
}

func newArchiveDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an archived document",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, done, err := a.openStore()
			if err != nil {
				return err
			}
			defer done()
			deleted, err := store.DeleteDocument(a.ctx, args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("no archived document with id %s", args[0])
			}
			return nil
		},
	}
}
