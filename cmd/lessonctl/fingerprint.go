package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mualim/api/internal/generation"
	"github.com/spf13/cobra"
)

func newFingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <kind> [file]",
		Short: "Print the novelty fingerprint of a JSON result",
		Long: `Normalizes a JSON object against the kind's contract and prints the
fingerprint used for duplicate detection. Reads stdin when no file is given.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, ok := generation.LookupSchema(generation.Kind(args[0]))
			if !ok {
				return fmt.Errorf("unknown kind %q", args[0])
			}

			in := cmd.InOrStdin()
			if len(args) == 2 {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return err
			}

			var c generation.Candidate
			dec := json.NewDecoder(bytes.NewReader(data))
			dec.UseNumber()
			if err := dec.Decode(&c); err != nil {
				return fmt.Errorf("decode result: %w", err)
			}

			result := generation.Normalize(schema, c, generation.Request{Kind: schema.Kind}.Sanitize())
			fmt.Fprintln(cmd.OutOrStdout(), generation.Fingerprint(schema, result))
			return nil
		},
	}
}

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the registered content kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range generation.Schemas() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", s.Kind, s.Description)
			}
			return nil
		},
	}
}
