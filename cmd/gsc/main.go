package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shaderlab/gsc/pkg/ir"
	"github.com/shaderlab/gsc/pkg/liveness"
	"github.com/shaderlab/gsc/pkg/regalloc"
	"github.com/shaderlab/gsc/pkg/target"
)

var version = "0.1.0"

// Debug flags for dumping intermediate state
var (
	dLive bool
	dRA   bool
)

// Allocator options
var (
	targetPath     string
	skipOptimistic bool
	verbose        bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	// Normalize compiler-style single-dash flags to double-dash for pflag compatibility
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// debugFlagNames lists all debug flags that should accept single-dash style
var debugFlagNames = []string{"dlive", "dra"}

// normalizeFlags converts single-dash flags like -dra to --dra
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		for _, flagName := range debugFlagNames {
			if arg == "-"+flagName {
				result[i] = "--" + flagName
				break
			}
		}
		if result[i] == "" {
			result[i] = arg
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gsc [file]",
		Short: "gsc runs the shader register allocator over a program description",
		Long: `gsc reads a YAML shader program description, computes liveness and
assigns a physical register to every temporary. It is built for testing
the allocation pass rather than practical use: the input format exposes
the allocator's IR directly.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.Help()
				return nil
			}
			return allocate(args[0], out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().BoolVar(&dLive, "dlive", false, "Dump per-block live-out sets")
	rootCmd.Flags().BoolVar(&dRA, "dra", false, "Dump the program after register allocation")
	rootCmd.Flags().StringVarP(&targetPath, "target", "t", "", "Chip description TOML file (default gfx9)")
	rootCmd.Flags().BoolVar(&skipOptimistic, "skip-optimistic", false, "Disable the optimistic free search (stress testing)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log allocator decisions to stderr")

	return rootCmd
}

// loadChip resolves the target description from the --target flag.
func loadChip(errOut io.Writer) (target.Chip, error) {
	if targetPath == "" {
		return target.Default(), nil
	}
	chip, err := target.Load(targetPath)
	if err != nil {
		fmt.Fprintf(errOut, "gsc: %v\n", err)
		return target.Chip{}, err
	}
	return chip, nil
}

func allocate(filename string, out, errOut io.Writer) error {
	chip, err := loadChip(errOut)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(errOut, "gsc: error reading %s: %v\n", filename, err)
		return err
	}

	prog, err := ir.DecodeProgram(data, chip)
	if err != nil {
		fmt.Fprintf(errOut, "gsc: parsing %s: %v\n", filename, err)
		return err
	}

	liveOut := liveness.Compute(prog)
	if dLive {
		printLiveOut(out, liveOut)
	}

	policy := regalloc.Policy{SkipOptimisticPath: skipOptimistic}
	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()
		policy.Logger = logger
	}

	if err := regalloc.Run(prog, liveOut, policy); err != nil {
		fmt.Fprintf(errOut, "gsc: %v\n", err)
		return err
	}

	if dRA {
		ir.NewPrinter(out).PrintProgram(prog)
	}
	fmt.Fprintf(out, "; vgprs: %d, sgprs: %d\n", prog.Config.NumVGPRs, prog.Config.NumSGPRs)
	return nil
}

// printLiveOut dumps one sorted id list per block.
func printLiveOut(out io.Writer, liveOut []liveness.IDSet) {
	for i, set := range liveOut {
		ids := make([]uint32, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
		fmt.Fprintf(out, "; live-out BB%d:", i)
		for _, id := range ids {
			fmt.Fprintf(out, " %%%d", id)
		}
		fmt.Fprintln(out)
	}
}
