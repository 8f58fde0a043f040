package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/raymyers/vflow/pkg/analyzer"
	"github.com/raymyers/vflow/pkg/config"
	"github.com/raymyers/vflow/pkg/export"
	"github.com/raymyers/vflow/pkg/preproc"
	"github.com/raymyers/vflow/pkg/vast"
)

var version = "0.1.0"

// Analysis options
var (
	topModule  string
	searchList []string
	noBind     bool
	noReorder  bool
	format     string
	configFile string
	verbose    bool
	dParse     bool
)

// Preprocessor options
var (
	includePaths   []string
	defineFlags    []string
	preprocessOnly bool // -E flag
	useExternalPP  bool // Use iverilog -E
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	// Accept the single-dash spelling of the dump flags
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "vflow: %v\n", err)
		return 1
	}
	return 0
}

// debugFlagNames lists the flags that also accept a single dash
var debugFlagNames = []string{"dparse", "nobind", "noreorder"}

// normalizeFlags converts single-dash flags like -dparse to --dparse
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
		Use:   "vflow [flags] file...",
		Short: "vflow extracts the dataflow graph of a Verilog design",
		Long: `vflow elaborates a Verilog design from its top module and prints
every signal together with the expressions that drive it. Generate
blocks and loops are unrolled, parameters and functions evaluated,
and the resulting trees simplified.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(errOut)

			if len(args) == 0 {
				cmd.Help()
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if preprocessOnly {
				return doPreprocessOnly(args, cfg, out)
			}
			if dParse {
				return doParse(args, cfg, out)
			}
			return doAnalyze(args, cfg, out)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	addFlags(rootCmd.Flags())
	return rootCmd
}

func addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&topModule, "top", "t", "", "Top module (inferred when there is exactly one root)")
	fs.StringArrayVarP(&searchList, "search", "s", nil, "Only print signals at or below this scope")
	fs.BoolVar(&noBind, "nobind", false, "Declare signals only, skip binding")
	fs.BoolVar(&noReorder, "noreorder", false, "Keep branches where they occur in the trees")
	fs.StringVar(&format, "format", "text", "Output format: text, json or yaml")
	fs.StringVar(&configFile, "config", "", "Configuration file (default: search for vflow.yaml)")
	fs.BoolVarP(&verbose, "verbose", "v", false, "Log pass timing and counts")
	fs.BoolVar(&dParse, "dparse", false, "Dump after parsing")

	fs.StringArrayVarP(&includePaths, "include", "I", nil, "Add directory to include search path")
	fs.StringArrayVarP(&defineFlags, "define", "D", nil, "Define macro (NAME or NAME=VALUE)")
	fs.BoolVarP(&preprocessOnly, "preprocess", "E", false, "Preprocess only, output to stdout")
	fs.BoolVar(&useExternalPP, "external-pp", false, "Use iverilog -E instead of the internal preprocessor")
}

func setupLogging(errOut io.Writer) {
	log.SetOutput(errOut)
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	color := false
	if f, ok := errOut.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	log.SetFormatter(&log.TextFormatter{ForceColors: color, DisableColors: !color, DisableTimestamp: true})
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.Load()
}

// parseDefines splits -D flags (NAME or NAME=VALUE)
func parseDefines() map[string]string {
	defines := make(map[string]string)
	for _, d := range defineFlags {
		if idx := strings.Index(d, "="); idx >= 0 {
			defines[d[:idx]] = d[idx+1:]
		} else {
			defines[d] = ""
		}
	}
	return defines
}

func buildOptions(files []string, cfg *config.Config) analyzer.Options {
	return analyzer.Options{
		Files:        files,
		Top:          topModule,
		IncludePaths: includePaths,
		Defines:      parseDefines(),
		NoBind:       noBind,
		NoReorder:    noReorder,
		External:     useExternalPP,
		Config:       cfg,
	}
}

func preprocess(files []string, cfg *config.Config) ([]preproc.Source, error) {
	opts := buildOptions(files, cfg)
	return preproc.Preprocess(files, opts.PreprocOptions())
}

// doPreprocessOnly prints the preprocessed text of every file (-E flag)
func doPreprocessOnly(files []string, cfg *config.Config, out io.Writer) error {
	sources, err := preprocess(files, cfg)
	if err != nil {
		return fmt.Errorf("preprocessing: %w", err)
	}
	for _, src := range sources {
		fmt.Fprint(out, src.Text)
	}
	return nil
}

// doParse parses the files and prints the modules back as Verilog
func doParse(files []string, cfg *config.Config, out io.Writer) error {
	sources, err := preprocess(files, cfg)
	if err != nil {
		return fmt.Errorf("preprocessing: %w", err)
	}
	asts, err := analyzer.Parse(sources, cfg.DefaultNettype)
	if err != nil {
		return err
	}
	printer := vast.NewPrinter(out)
	for _, ast := range asts {
		printer.PrintSource(ast)
	}
	return nil
}

func doAnalyze(files []string, cfg *config.Config, out io.Writer) error {
	res, err := analyzer.Analyze(buildOptions(files, cfg))
	if err != nil {
		return err
	}
	res.Filter(searchList)
	return export.Write(out, res, format)
}
