package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/inferq/fingerprint"
)

func newFingerprintCmd() *cobra.Command {
	var (
		model   string
		ver     string
		rawJSON string
	)

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the cache key of a prediction request",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := decodeInput(rawJSON)
			if err != nil {
				return err
			}
			fp, err := fingerprint.NewDefaultKeyer().Key(model, ver, input)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), fp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "model name")
	cmd.Flags().StringVar(&ver, "version", "", "resolved model version")
	cmd.Flags().StringVarP(&rawJSON, "input", "i", "{}", "input features as a JSON object")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func decodeInput(raw string) (fingerprint.Input, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var in fingerprint.Input
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if in == nil {
		in = fingerprint.Input{}
	}
	return in, nil
}
