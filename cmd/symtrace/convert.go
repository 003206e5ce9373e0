package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"symtrace/internal/wire"
)

var convertCmd = &cobra.Command{
	Use:   "convert [flags] <in> <out>",
	Short: "Rewrite a trace log in the other wire form",
	Long: `Convert between the framed stream form written by live producers and the
single-message container form. Events are copied unchanged`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("to", "", "target form (stream|container); default is the opposite of the input")
	convertCmd.Flags().String("producer", "symtrace convert", "producer recorded in a stream header")
}

func runConvert(cmd *cobra.Command, args []string) error {
	toStr, err := cmd.Flags().GetString("to")
	if err != nil {
		return fmt.Errorf("failed to get to flag: %w", err)
	}
	producer, err := cmd.Flags().GetString("producer")
	if err != nil {
		return fmt.Errorf("failed to get producer flag: %w", err)
	}

	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	from := wire.Sniff(data)
	to := wire.FormStream
	if from == wire.FormStream {
		to = wire.FormContainer
	}
	if toStr != "" {
		if to, err = wire.ParseForm(toStr); err != nil {
			return err
		}
	}

	tr, err := wire.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	out, err := wire.Encode(tr, to, producer)
	if err != nil {
		return fmt.Errorf("encode %s form: %w", to, err)
	}

	if args[1] == "-" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(args[1], out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", args[1], err)
	}
	if !quietFlag(cmd) {
		fmt.Fprintf(cmd.ErrOrStderr(), "converted %d event(s): %s -> %s\n", len(tr.Events), from, to)
	}
	return nil
}
