package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/golang/glog"
	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"

	"github.com/pacifier94/ByteCode-VM/pkg/asm"
	"github.com/pacifier94/ByteCode-VM/pkg/isa"
	"github.com/pacifier94/ByteCode-VM/pkg/utils"
	"github.com/pacifier94/ByteCode-VM/pkg/vm"
)

const defaultOutputPath = "program.bin"

type options struct {
	noColor  bool
	run      bool
	dump     bool
	listing  bool
	trace    bool
	maxSteps int
}

func main() {
	opts := &options{}
	root := newRootCmd(opts)
	if err := root.Execute(); err != nil {
		au := aurora.NewAurora(!opts.noColor)
		fmt.Fprintf(os.Stderr, "%s %v\n", au.Red("error:"), err)
		glog.Flush()
		os.Exit(1)
	}
	glog.Flush()
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "bcvm <source.asm> [output.bin]",
		Short: "Assembler for the bytecode stack VM",
		Long: `bcvm translates stack-machine assembly into the flat binary format read
by the VM: one opcode byte per instruction, followed by a 4-byte big-endian
signed operand when the instruction has one.

The output defaults to ` + defaultOutputPath + `. Nothing is written if assembly fails.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := defaultOutputPath
			if len(args) > 1 {
				output = args[1]
			}
			return assembleCmd(cmd.OutOrStdout(), opts, args[0], output)
		},
	}
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable coloured output")
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	root.Flags().BoolVar(&opts.run, "run", false, "run the assembled program on the VM")
	root.Flags().BoolVar(&opts.dump, "dump", false, "dump the label table and instruction records")
	root.Flags().BoolVar(&opts.listing, "listing", false, "print a disassembly listing of the output")

	runCmd := &cobra.Command{
		Use:   "run <program.bin>",
		Short: "Run an assembled binary on the VM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read binary file %q: %w", args[0], err)
			}
			return runBinary(cmd.OutOrStdout(), opts, args[0], code)
		},
	}
	root.AddCommand(runCmd)

	disasmCmd := &cobra.Command{
		Use:   "disasm <program.bin>",
		Short: "Print a listing of an assembled binary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read binary file %q: %w", args[0], err)
			}
			ins, err := isa.Decode(code)
			fmt.Fprint(cmd.OutOrStdout(), isa.Listing(ins, nil))
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			return nil
		},
	}
	root.AddCommand(disasmCmd)

	for _, c := range []*cobra.Command{root, runCmd} {
		c.Flags().BoolVar(&opts.trace, "trace", false, "print PC and stack before every step")
		c.Flags().IntVar(&opts.maxSteps, "max-steps", 0, "stop after this many steps (0 = unlimited)")
	}

	return root
}

func assembleCmd(out io.Writer, opts *options, inPath, outPath string) error {
	au := aurora.NewAurora(!opts.noColor)

	prog, err := assembleFile(inPath, outPath)
	if err != nil {
		return fmt.Errorf("assembly failed: %w", err)
	}

	fmt.Fprintf(out, "%s Labels found: %v\n", au.Green("Assembled successfully."), au.Cyan(prog.Labels.Names()))
	fmt.Fprintf(out, "assembled %d bytes -> %s\n", len(prog.Code), outPath)

	if opts.dump {
		spew.Fdump(out, prog.Records, prog.Labels.ByAddress(), prog.SourceMap)
	}
	if opts.listing {
		ins, err := isa.Decode(prog.Code)
		if err != nil {
			return fmt.Errorf("decode %s: %w", outPath, err)
		}
		fmt.Fprint(out, isa.Listing(ins, prog.Labels.ByAddress()))
	}
	if opts.run {
		return runBinary(out, opts, outPath, prog.Code)
	}
	return nil
}

// assembleFile reads inPath, assembles it and writes outPath. The input is
// closed on every path and outPath is only created when assembly succeeds.
func assembleFile(inPath, outPath string) (*asm.Program, error) {
	fullPath, _, err := utils.GetPathInfo(inPath)
	if err != nil {
		return nil, err
	}
	glog.V(1).Infof("assembling %s -> %s", fullPath, outPath)

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file %q: %w", inPath, err)
	}
	defer f.Close()

	prog, err := asm.AssembleReader(f)
	if err != nil {
		return nil, err
	}

	if err := utils.WriteFileAtomic(outPath, prog.Code, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write binary file %q: %w", outPath, err)
	}
	return prog, nil
}

func runBinary(out io.Writer, opts *options, path string, code []byte) error {
	au := aurora.NewAurora(!opts.noColor)

	m := vm.New(code)
	m.MaxSteps = opts.maxSteps
	if opts.trace {
		m.Trace = out
	}
	if err := m.Run(); err != nil {
		return fmt.Errorf("run failed for %q: %w", path, err)
	}

	fmt.Fprintf(out, "%s %d\n", au.Bold("Final Result:"), m.Result())
	return nil
}
