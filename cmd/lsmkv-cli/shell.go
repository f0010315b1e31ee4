package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/kanjiru/lsmkv"
	"github.com/spf13/cobra"
)

var shellDB string

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "open an interactive prompt against a data directory",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func init() {
	shellCmd.Flags().StringVar(&shellDB, "db", "", "data directory to open")
}

func runShell(cmd *cobra.Command, args []string) error {
	if shellDB == "" {
		return fmt.Errorf("lsmkv-cli shell: --db is required")
	}

	store, err := lsmkv.Open(lsmkv.Options{DataDir: shellDB})
	if err != nil {
		return fmt.Errorf("lsmkv-cli shell: opening %s: %w", shellDB, err)
	}
	defer store.Close()

	scanner := bufio.NewScanner(os.Stdin)
	out := cmd.OutOrStdout()
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "put":
			if len(fields) != 3 {
				fmt.Fprintln(os.Stderr, "usage: put <key> <value>")
				continue
			}
			if err := store.Put(fields[1], fields[2]); err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			fmt.Fprintln(out, "OK")
		case "get":
			if len(fields) != 2 {
				fmt.Fprintln(os.Stderr, "usage: get <key>")
				continue
			}
			v, found, err := store.Get(fields[1])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			if !found {
				fmt.Fprintln(out, "(nil)")
				continue
			}
			fmt.Fprintln(out, v)
		case "delete":
			if len(fields) != 2 {
				fmt.Fprintln(os.Stderr, "usage: delete <key>")
				continue
			}
			if err := store.Delete(fields[1]); err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			fmt.Fprintln(out, "OK")
		case "exit":
			return nil
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", fields[0])
		}
	}
}
