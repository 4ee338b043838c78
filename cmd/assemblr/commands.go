package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/deixis/assemblr/internal/log"
	"github.com/deixis/assemblr/internal/report"
	"github.com/deixis/assemblr/internal/workflow"
	"github.com/spf13/cobra"
)

func addReadFlags(cmd *cobra.Command, reads *workflow.ReadInputs) {
	cmd.Flags().StringVar(&reads.Forward, "forward", "", "forward paired reads (FASTQ)")
	cmd.Flags().StringVar(&reads.Reverse, "reverse", "", "reverse paired reads (FASTQ)")
	cmd.Flags().StringVar(&reads.Single, "single", "", "unpaired reads (FASTQ)")
}

// --- assemble ---

func (a *app) newAssembleCmd() *cobra.Command {
	var (
		reads     workflow.ReadInputs
		outDir    string
		outPrefix string
		preset    string
		threads   int
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Assemble reads, resuming once from the last checkpoint on failure",
		Long: `Assemble paired and unpaired reads into contigs.

If the assembler fails it is rerun once with --continue. If the retry also
fails, opts.txt and the assembler log are logged and the output directory
is removed. Exits 1 when the final attempt fails.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, "forward", "reverse", "single", "out-dir"); err != nil {
				return err
			}
			inv := workflow.AssemblyInvocation{
				Binary:    a.cfg.AssemblerBinary(),
				Threads:   a.cfg.Threads(),
				OutDir:    outDir,
				Reads:     reads,
				OutPrefix: a.cfg.Assembler.OutPrefix,
				Preset:    workflow.Preset(a.cfg.AssemblerPreset()),
			}
			if cmd.Flags().Changed("threads") {
				inv.Threads = threads
			}
			if cmd.Flags().Changed("out-prefix") {
				inv.OutPrefix = outPrefix
			}
			if cmd.Flags().Changed("preset") {
				inv.Preset = workflow.Preset(preset)
			}

			ctx := log.ContextAttrs(cmd.Context(), slog.String("cmd", "assemble"))
			res, err := a.engine(timeout).Assemble(ctx, inv)
			if err != nil {
				return err
			}
			a.save(ctx, res.Run)

			return a.emit(res.Run, res.Outputs, res.Success(), func(w io.Writer) {
				fmt.Fprintf(w, "assemble: %s (%s, %s)\n", verdict(res.Success()), res.Status, plural(len(res.Run.Attempts), "attempt"))
				fmt.Fprintf(w, "run: %s\n", res.Run.ID)
				fmt.Fprintf(w, "%s: %s\n", report.ArtifactFinalContigs, res.Outputs.FinalContigs)
				if res.Run.OutDirRemoved {
					fmt.Fprintf(w, "removed: %s\n", outDir)
				}
			})
		},
	}
	addReadFlags(cmd, &reads)
	cmd.Flags().StringVar(&outDir, "out-dir", "", "assembler output directory (removed if the assembly fails twice)")
	cmd.Flags().StringVar(&outPrefix, "out-prefix", "", "output file prefix (default from config, then "+workflow.DefaultOutPrefix+")")
	cmd.Flags().StringVar(&preset, "preset", "", "parameter preset: "+presetNames())
	cmd.Flags().IntVar(&threads, "threads", 0, "CPU threads (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "override the configured per-attempt timeout (e.g. 48h)")
	return cmd
}

func presetNames() string {
	names := make([]string, len(workflow.Presets))
	for i, p := range workflow.Presets {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

// --- subsample ---

func (a *app) newSubsampleCmd() *cobra.Command {
	var (
		reads         workflow.ReadInputs
		outDir        string
		outPrefix     string
		percentage    int
		numSubsamples int
		seed          int64
	)
	cmd := &cobra.Command{
		Use:   "subsample",
		Short: "Draw random subsamples of a read library",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, "forward", "reverse", "single", "out-dir", "percentage", "num-subsamples"); err != nil {
				return err
			}
			inv := workflow.SubsampleInvocation{
				Binary:        a.cfg.SubsamplerBinary(),
				Reads:         reads,
				Percentage:    percentage,
				NumSubsamples: numSubsamples,
				OutDir:        outDir,
				OutPrefix:     outPrefix,
			}
			if cmd.Flags().Changed("seed") {
				inv.RandomSeed = &seed
			}

			ctx := log.ContextAttrs(cmd.Context(), slog.String("cmd", "subsample"))
			res, err := a.engine(0).Subsample(ctx, inv)
			if err != nil {
				return err
			}
			a.save(ctx, res.Run)

			return a.emit(res.Run, res.Outputs, res.Success(), func(w io.Writer) {
				fmt.Fprintf(w, "subsample: %s (%s)\n", verdict(res.Success()), res.Status)
				fmt.Fprintf(w, "run: %s\n", res.Run.ID)
				for i, s := range res.Outputs.Subsamples {
					fmt.Fprintf(w, "%d: %s %s %s\n", i, s.Forward, s.Reverse, s.Single)
				}
			})
		},
	}
	addReadFlags(cmd, &reads)
	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory receiving the subsamples")
	cmd.Flags().StringVar(&outPrefix, "out-prefix", "", "subsample file prefix (default percent_NN)")
	cmd.Flags().IntVar(&percentage, "percentage", 0, "percentage of reads kept in each subsample")
	cmd.Flags().IntVar(&numSubsamples, "num-subsamples", 0, "number of subsamples to draw")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (recorded only; the subsampler picks its own)")
	return cmd
}

// --- cleanup ---

func (a *app) newCleanupCmd() *cobra.Command {
	var (
		dir        string
		threads    int
		compressor string
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove intermediate contigs and compress the final ones",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, "dir"); err != nil {
				return err
			}
			inv := workflow.CleanupInvocation{
				AssemblyDir: dir,
				Compressor:  a.cfg.CompressorBinary(),
				Threads:     a.cfg.Threads(),
			}
			if cmd.Flags().Changed("threads") {
				inv.Threads = threads
			}
			if cmd.Flags().Changed("compressor") {
				inv.Compressor = compressor
			}

			ctx := log.ContextAttrs(cmd.Context(), slog.String("cmd", "cleanup"))
			res, err := a.engine(0).CleanUp(ctx, inv)
			if err != nil {
				return err
			}
			a.save(ctx, res.Run)

			return a.emit(res.Run, res.Outputs, res.Success(), func(w io.Writer) {
				fmt.Fprintf(w, "cleanup: %s (%s)\n", verdict(res.Success()), res.Status)
				fmt.Fprintf(w, "run: %s\n", res.Run.ID)
				for _, f := range res.Outputs.Compressed {
					fmt.Fprintf(w, "compressed: %s\n", f)
				}
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "assembly output directory")
	cmd.Flags().IntVar(&threads, "threads", 0, "compression threads, pigz only (default from config)")
	cmd.Flags().StringVar(&compressor, "compressor", "", "compressor binary (default from config)")
	return cmd
}

// --- inspect ---

func (a *app) newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <run-id> [artifact]",
		Short: "Show a stored run",
		Long: `Show the attempts and artifacts of a stored run.

The optional artifact filter is a name (final_contigs), a sample index (2),
or both (subsample_forward.2).`,
		Args: usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.store().Load(args[0])
			if err != nil {
				return err
			}
			var query string
			if len(args) == 2 {
				query = args[1]
			}
			artifacts := report.Select(result, query)

			if a.flagJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				if query == "" {
					return enc.Encode(result)
				}
				return enc.Encode(artifacts)
			}
			if query != "" && len(artifacts) == 0 {
				return fmt.Errorf("no artifacts match %q in run %s", query, result.ID)
			}
			fmt.Fprint(a.stdout, report.Describe(result, artifacts))
			return nil
		},
	}
}

func verdict(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAIL"
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
