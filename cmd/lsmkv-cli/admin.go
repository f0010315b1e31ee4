package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var compactCmd = &cobra.Command{
	Use:   "compact <db>",
	Short: "force a compaction pass and wait for it to finish",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompact,
}

var statsCmd = &cobra.Command{
	Use:   "stats <db>",
	Short: "print the store's current file and memtable counts",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the CLI version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func runCompact(cmd *cobra.Command, args []string) error {
	store, err := openOneShot(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CompactNow(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "OK")
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	store, err := openOneShot(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	s := store.Stats()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "l0_files: %d\n", s.L0Files)
	fmt.Fprintf(out, "l1_files: %d\n", s.L1Files)
	fmt.Fprintf(out, "active_memtable_bytes: %d\n", s.ActiveMemtableBytes)
	fmt.Fprintf(out, "immutable_memtables: %d\n", s.ImmutableMemtables)
	return nil
}
