package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cocosip/go-jpeg-codec/jpeg/optimizer"
)

// NewOptimizeCmd creates the optimize cobra command
func NewOptimizeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize <file>",
		Short: "Losslessly rebuild a baseline JPEG with optimal Huffman tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			strip, _ := cmd.Flags().GetBool("strip")

			optimized, err := optimizer.Optimize(data, strip)
			if err != nil {
				return fmt.Errorf("optimize: %w", err)
			}
			slog.InfoContext(ctx, "optimized", "file", args[0],
				"before", len(data), "after", len(optimized))

			outPath, _ := cmd.Flags().GetString("out")
			if outPath == "" {
				outPath = args[0] + ".opt.jpg"
			}
			return os.WriteFile(outPath, optimized, 0o644)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("out", "o", "", "output path (default <file>.opt.jpg)")
	pf.Bool("strip", false, "drop APPn/COM metadata, emitting a bare JFIF header")
	return cmd
}
