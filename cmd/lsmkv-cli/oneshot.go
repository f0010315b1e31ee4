package main

import (
	"fmt"

	"github.com/kanjiru/lsmkv"
	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <db> <key> <value>",
	Short: "write a single key/value pair and exit",
	Args:  cobra.ExactArgs(3),
	RunE:  runPut,
}

var getCmd = &cobra.Command{
	Use:   "get <db> <key>",
	Short: "read a single key and exit",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <db> <key>",
	Short: "tombstone a single key and exit",
	Args:  cobra.ExactArgs(2),
	RunE:  runDelete,
}

func openOneShot(dir string) (*lsmkv.Store, error) {
	store, err := lsmkv.Open(lsmkv.Options{DataDir: dir})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dir, err)
	}
	return store, nil
}

func runPut(cmd *cobra.Command, args []string) error {
	store, err := openOneShot(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Put(args[1], args[2]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "OK")
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	store, err := openOneShot(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	v, found, err := store.Get(args[1])
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(cmd.OutOrStdout(), "(nil)")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	store, err := openOneShot(args[0])
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(args[1]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "OK")
	return nil
}
