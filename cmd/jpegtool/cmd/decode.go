package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cocosip/go-jpeg-codec/jpeg/decoder"
)

// NewDecodeCmd creates the decode cobra command. Output is a PGM (one
// component) or PPM (three components) dump of the decoded samples.
func NewDecodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <file>",
		Short: "Decode a JPEG and dump the samples as PGM/PPM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			sink := decoder.NewSampleBuffer()
			if err := decoder.Decode(data, sink); err != nil {
				return fmt.Errorf("decode: %w", err)
			}
			frame := sink.Frame()
			slog.InfoContext(ctx, "decoded", "file", args[0],
				"width", frame.Width, "height", frame.Height,
				"components", len(frame.Components))

			outPath, _ := cmd.Flags().GetString("out")
			if outPath == "" {
				outPath = args[0] + ".pnm"
			}
			out, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer out.Close()

			samples := sink.Interleaved()
			switch len(frame.Components) {
			case 1:
				fmt.Fprintf(out, "P5\n%d %d\n255\n", frame.Width, frame.Height)
			case 3:
				fmt.Fprintf(out, "P6\n%d %d\n255\n", frame.Width, frame.Height)
			default:
				return fmt.Errorf("no PNM format for %d components", len(frame.Components))
			}
			_, err = out.Write(samples)
			return err
		},
	}
	cmd.PersistentFlags().StringP("out", "o", "", "output path (default <file>.pnm)")
	return cmd
}
