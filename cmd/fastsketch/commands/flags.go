package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/fastsketch/pkg/config"
)

// commonFlags are the sketch selection and run flags of every operation.
// They override the loaded config only when set on the command line.
type commonFlags struct {
	ksize            int
	scaled           int
	moltype          string
	cores            int
	allowFailed      bool
	noJaccard        bool
	noMaxContainment bool
	strict           bool

	// Exactly one of the threshold flags is registered per command.
	threshold   float64
	thresholdBP string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntVarP(&f.ksize, "ksize", "k", config.DefaultKsize, "K-mer size to select")
	flags.IntVarP(&f.scaled, "scaled", "s", config.DefaultScaled, "Scaled value to select and downsample to")
	flags.StringVar(&f.moltype, "moltype", config.DefaultMoltype, "Molecule type to select (DNA, protein, dayhoff, hp)")
	flags.IntVarP(&f.cores, "cores", "c", config.DefaultCores, "Worker count (0 = all available cores)")
	flags.BoolVar(&f.allowFailed, "allow-failed", false, "Exit successfully even if some paths fail to load")
	flags.BoolVar(&f.noJaccard, "no-jaccard", false, "Do not compute jaccard")
	flags.BoolVar(&f.noMaxContainment, "no-max-containment", false, "Do not compute max containment")
	flags.BoolVar(&f.strict, "strict", false, "Validate every signature file against the JSON schema")
}

func (f *commonFlags) registerThreshold(cmd *cobra.Command) {
	cmd.Flags().Float64VarP(&f.threshold, "threshold", "t", config.DefaultThreshold,
		"Report pairs whose containment exceeds this value")
}

func (f *commonFlags) registerThresholdBP(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.thresholdBP, "threshold-bp", "t", config.DefaultThresholdBP,
		"Minimum overlap in base pairs (e.g. 50000, 50kb, 1M)")
}

// apply copies explicitly set flags into cfg and revalidates it.
func (f *commonFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("ksize") {
		cfg.Search.Ksize = f.ksize
	}

	if flags.Changed("scaled") {
		cfg.Search.Scaled = f.scaled
	}

	if flags.Changed("moltype") {
		cfg.Search.Moltype = f.moltype
	}

	if flags.Changed("cores") {
		cfg.Search.Cores = f.cores
	}

	if flags.Changed("allow-failed") {
		cfg.Search.AllowFailed = f.allowFailed
	}

	if flags.Changed("no-jaccard") {
		cfg.Search.Jaccard = !f.noJaccard
	}

	if flags.Changed("no-max-containment") {
		cfg.Search.MaxContainment = !f.noMaxContainment
	}

	if flags.Changed("strict") {
		cfg.Storage.StrictSchema = f.strict
	}

	if flags.Changed("threshold") {
		cfg.Search.Threshold = f.threshold
	}

	if flags.Changed("threshold-bp") {
		cfg.Search.ThresholdBP = f.thresholdBP
	}

	return cfg.Validate()
}
