// Command tinymach is the driver program binding the assembler and
// simulator packages together: assemble source into an image, run an image
// to completion, or step it interactively.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tinymach/asm"
	"tinymach/vm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tinymach",
		Short: "Assembler and simulator for the tinymach educational architecture",
	}

	var asmOutput string
	assembleCmd := &cobra.Command{
		Use:   "assemble [source.asm]",
		Short: "Assemble a source file into an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			img, err := asm.Translate(string(src))
			if err != nil {
				return fmt.Errorf("assemble: %w", err)
			}
			data, err := asm.Serialize(img)
			if err != nil {
				return err
			}
			if asmOutput == "" {
				fmt.Println(string(data))
				return nil
			}
			return os.WriteFile(asmOutput, data, 0o644)
		},
	}
	assembleCmd.Flags().StringVarP(&asmOutput, "output", "o", "", "Image output path (default stdout)")

	var maxTicks int
	var inputPath string
	runCmd := &cobra.Command{
		Use:   "run [image.json]",
		Short: "Run an assembled image to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := loadImage(args[0])
			if err != nil {
				return err
			}
			inputs, err := loadInputs(inputPath)
			if err != nil {
				return err
			}
			report, err := vm.Run(img, inputs, maxTicks)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	runCmd.Flags().IntVar(&maxTicks, "max-ticks", 1_000_000, "Tick budget before the run is stopped")
	runCmd.Flags().StringVar(&inputPath, "inputs", "", "JSON file of scheduled port input events")

	debugCmd := &cobra.Command{
		Use:   "debug [image.json]",
		Short: "Single-step an assembled image in an interactive TUI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := loadImage(args[0])
			if err != nil {
				return err
			}
			return vm.Debug(img, maxTicks)
		},
	}
	debugCmd.Flags().IntVar(&maxTicks, "max-ticks", 1_000_000, "Tick budget before the run is stopped")

	rootCmd.AddCommand(assembleCmd, runCmd, debugCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadImage(path string) (asm.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return asm.Deserialize(data)
}

func loadInputs(path string) ([]vm.InputEvent, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var events []vm.InputEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return events, nil
}
