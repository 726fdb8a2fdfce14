package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/wikiharvest/internal/normalizer"
)

var showHTML bool

// normalizeCmd creates the "normalize" subcommand, which runs the content
// normalizer on a local HTML fragment.
func normalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <file|->",
		Short: "Normalize a local HTML fragment and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runNormalize,
	}
	cmd.Flags().BoolVar(&showHTML, "html", false, "also print the cleaned HTML body")
	return cmd
}

func runNormalize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	raw, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	norm, err := normalizer.New(cfg.Normalizer, logger)
	if err != nil {
		return fmt.Errorf("create normalizer: %w", err)
	}
	res, err := norm.Normalize(string(raw))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Summary:\n%s\n\nBody:\n%s\n", res.Summary, res.Body)
	if showHTML {
		fmt.Fprintf(w, "\nHTML:\n%s\n", res.BodyHTML)
	}
	return nil
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}
