package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"packtrack/infrastructure/scancode"
)

func newNormalizeCommand() *cobra.Command {
	var channel string
	var format string
	cmd := &cobra.Command{
		Use:   "normalize <raw>",
		Short: "Show how a raw scan is normalized and classified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := scancode.ParseChannel(channel)
			if err != nil {
				return err
			}
			rows, err := normalizeRows(args[0], ch, scancode.ParseFormat(format))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(), []string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "physical", "Scan channel: camera or physical")
	cmd.Flags().StringVar(&format, "format", "", "Decoder format, e.g. QR_CODE or CODE_128")
	return cmd
}

func normalizeRows(raw string, ch scancode.Channel, format scancode.Format) ([][]string, error) {
	code := scancode.Normalize(raw, ch)
	if code == "" {
		return nil, fmt.Errorf("%q normalizes to an empty code", raw)
	}
	cls := scancode.Classify(code, ch, format)
	rows := [][]string{
		{"code", code},
		{"kind", cls.Kind.String()},
	}
	if cls.Kind == scancode.KindPackageCode {
		rows = append(rows,
			[]string{"tier", cls.Tier.String()},
			[]string{"mel", strconv.FormatBool(scancode.IsMELCode(code))},
			[]string{"confirm", strconv.FormatBool(cls.NeedsConfirmation)},
		)
		if cls.NeedsConfirmation {
			rows = append(rows, []string{"prompt", cls.Title + ": " + cls.Message})
		}
	}
	return rows, nil
}
