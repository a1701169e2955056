package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cocosip/go-jpeg-codec/jpeg/decoder"
)

// NewIdentifyCmd creates the identify cobra command
func NewIdentifyCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identify <file>",
		Short: "Report JPEG frame parameters without decoding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			info, n, err := decoder.Identify(data, true)
			if err != nil {
				return fmt.Errorf("identify: %w", err)
			}
			slog.InfoContext(ctx, "identified", "file", args[0], "bytes", n)

			switch format, _ := cmd.Flags().GetString("format"); format {
			case "text":
				fmt.Printf("size:       %dx%d\n", info.Width, info.Height)
				fmt.Printf("components: %d\n", info.Components)
				fmt.Printf("precision:  %d\n", info.Precision)
				fmt.Printf("progressive: %v\n", info.Progressive)
				fmt.Printf("arithmetic:  %v\n", info.Arithmetic)
				fmt.Printf("lossless:    %v\n", info.Lossless)
				fmt.Printf("est. quality: %d\n", info.EstimatedQuality)
				fmt.Printf("stream bytes: %d\n", n)
			default:
				j, _ := json.Marshal(map[string]interface{}{
					"width": info.Width, "height": info.Height,
					"components": info.Components, "precision": info.Precision,
					"progressive": info.Progressive, "arithmetic": info.Arithmetic,
					"lossless": info.Lossless, "estimatedQuality": info.EstimatedQuality,
					"streamBytes": n,
				})
				os.Stdout.Write(j)
				fmt.Println()
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringP("format", "f", "json", "output format (text|json)")
	return cmd
}
