// Package main is the entry point for the tempocore CLI, a small front end
// over the tempo/timing conversion engine for inspecting tempo maps and
// converting between ticks, beats, and seconds.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kagelight/tempocore/pkg/logger"
	"github.com/kagelight/tempocore/pkg/smfutil"
	"github.com/kagelight/tempocore/pkg/tempomap"
	"github.com/kagelight/tempocore/pkg/timeunits"
	"github.com/kagelight/tempocore/pkg/timing"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	logLevel string

	mapFile     string
	globalBPM   float64
	ppq         int
	beatsPerBar float64

	fromSeconds float64
	fromTicks   float64
	fromBeats   float64

	windowCenter float64
	windowBars   int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tempocore",
	Short: "Convert between ticks, beats, and seconds under a tempo map",
	Long: `tempocore is a command-line front end over the tempo/timing conversion
engine. It converts positions between ticks, beats, and wall-clock seconds
under a constant tempo or a tempo map with stepped and linearly-ramped
segments.

Examples:
  tempocore convert --bpm 120 --ppq 960 --seconds 1.5
  tempocore convert --map tempo.json --ticks 3840
  tempocore inspect song.mid
  tempocore window --map tempo.json --seconds 12.5 --bars 4`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Init(effectiveLogLevel(logLevel, cmd.Flags().Changed("log-level")))
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a position between seconds, ticks, and beats",
	Long: `Converts a single position to all three time domains. Exactly one of
--seconds, --ticks, or --beats must be given.`,
	RunE: runConvert,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid>",
	Short: "Print the tempo map of a Standard MIDI File",
	Long: `Extracts all tempo changes from a Standard MIDI File and prints the
resolved segment table with cumulative second, beat, and tick offsets.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Compute a bar-aligned window around a position",
	RunE:  runWindow,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")

	for _, cmd := range []*cobra.Command{convertCmd, windowCmd} {
		cmd.Flags().StringVarP(&mapFile, "map", "m", "", "JSON tempo map file")
		cmd.Flags().Float64Var(&globalBPM, "bpm", timeunits.DefaultBPM, "global tempo when no map is set")
		cmd.Flags().IntVar(&ppq, "ppq", timeunits.DefaultTicksPerQuarter, "ticks per quarter note")
	}

	convertCmd.Flags().Float64Var(&fromSeconds, "seconds", 0, "position in seconds")
	convertCmd.Flags().Float64Var(&fromTicks, "ticks", 0, "position in ticks")
	convertCmd.Flags().Float64Var(&fromBeats, "beats", 0, "position in beats")

	windowCmd.Flags().Float64Var(&windowCenter, "seconds", 0, "window center in seconds")
	windowCmd.Flags().IntVar(&windowBars, "bars", 4, "window width in bars")
	windowCmd.Flags().Float64Var(&beatsPerBar, "beats-per-bar", timeunits.DefaultBeatsPerBar, "beats per bar")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(windowCmd)
}

// effectiveLogLevel resolves the log level with flag-over-environment
// precedence: an explicit --log-level wins, otherwise a non-empty LOG_LEVEL
// environment variable applies.
func effectiveLogLevel(flagValue string, flagSet bool) string {
	if !flagSet {
		if env := os.Getenv("LOG_LEVEL"); env != "" {
			return strings.ToLower(env)
		}
	}
	return flagValue
}

// newManager builds a timing manager from the shared tempo flags.
func newManager() (*timing.Manager, error) {
	cfg := timing.Config{
		TicksPerQuarter: ppq,
		GlobalBPM:       globalBPM,
		BeatsPerBar:     beatsPerBar,
	}
	if mapFile != "" {
		events, err := loadTempoMapFile(mapFile)
		if err != nil {
			return nil, err
		}
		cfg.Events = events
	}
	return timing.NewManagerWithConfig(cfg)
}

// loadTempoMapFile parses a JSON array of tempo change events.
func loadTempoMapFile(path string) ([]tempomap.ChangeEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tempo map: %w", err)
	}
	var events []tempomap.ChangeEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse tempo map %s: %w", path, err)
	}
	return events, nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	set := 0
	for _, name := range []string{"seconds", "ticks", "beats"} {
		if cmd.Flags().Changed(name) {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of --seconds, --ticks, or --beats must be given")
	}

	mgr, err := newManager()
	if err != nil {
		return err
	}

	var seconds timeunits.Seconds
	switch {
	case cmd.Flags().Changed("seconds"):
		seconds = timeunits.Seconds(fromSeconds)
	case cmd.Flags().Changed("ticks"):
		seconds = mgr.TicksToSeconds(timeunits.Ticks(fromTicks))
	case cmd.Flags().Changed("beats"):
		seconds = mgr.BeatsToSeconds(timeunits.Beats(fromBeats))
	}

	logger.Get().Debug("converting position", "seconds", float64(seconds))

	fmt.Printf("seconds: %.6f\n", float64(seconds))
	fmt.Printf("beats:   %.6f\n", float64(mgr.SecondsToBeats(seconds)))
	fmt.Printf("ticks:   %.6f\n", float64(mgr.SecondsToTicks(seconds)))
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	events, filePPQ, err := smfutil.ReadTempoEvents(args[0])
	if err != nil {
		return err
	}

	tm, err := tempomap.New(events, timeunits.DefaultBPM, filePPQ)
	if err != nil {
		return err
	}

	logger.Get().Info("extracted tempo map", "file", args[0], "events", len(events), "ppq", filePPQ)

	fmt.Printf("%s: %d ticks per quarter, %d segment(s)\n", args[0], filePPQ, tm.NumSegments())
	fmt.Printf("%12s %12s %12s %10s %10s %s\n", "seconds", "beats", "ticks", "bpm", "end bpm", "curve")
	for _, seg := range tm.Segments() {
		fmt.Printf("%12.4f %12.4f %12.1f %10.2f %10.2f %s\n",
			seg.StartTime, seg.StartBeats, seg.StartTicks, seg.StartBPM, seg.EndBPM, seg.Curve)
	}
	return nil
}

func runWindow(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}

	win, err := mgr.BarWindow(timeunits.Seconds(windowCenter), windowBars)
	if err != nil {
		return err
	}

	fmt.Printf("window: [%.6f, %.6f) seconds (%d bars)\n", float64(win.Start), float64(win.End), windowBars)
	return nil
}
