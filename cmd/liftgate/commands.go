package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/liftlab/liftgate/internal/decision"
	"github.com/liftlab/liftgate/internal/design"
	"github.com/liftlab/liftgate/internal/engine"
	"github.com/liftlab/liftgate/internal/outcome"
	"github.com/liftlab/liftgate/internal/scenario"
	"github.com/liftlab/liftgate/internal/server"
	"github.com/liftlab/liftgate/internal/stats"
	"github.com/liftlab/liftgate/internal/store"
)

// #region flags
var (
	baselineRate  float64
	targetLiftPct float64
	alphaFlag     float64
	powerFlag     float64
	controlShare  float64
	dailyTraffic  int

	controlN             int
	controlConversions   int
	treatmentN           int
	treatmentConversions int
	testTypeFlag         string
	directionFlag        string
	targetLiftFlag       float64

	briefFlag string
)

// #endregion flags

// #region serve
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.NewStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		var src scenario.Source
		if cfg.OpenAIKey != "" {
			src = scenario.NewLLMSource(cfg.OpenAIKey, cfg.OpenAIModel, scenario.DefaultBounds(), logger)
			logger.Info().Str("model", cfg.OpenAIModel).Msg("scenario source enabled")
		}

		srv := server.New(server.Options{
			Store:      st,
			Source:     src,
			TargetLift: cfg.TargetLift,
			Log:        logger,
		})
		logger.Info().Str("addr", cfg.ListenAddr).Str("db", cfg.DBPath).Msg("listening")
		return srv.Router().Run(cfg.ListenAddr)
	},
}

// #endregion serve

// #region size
var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Compute the required sample size for a design",
	RunE: func(cmd *cobra.Command, args []string) error {
		alloc, err := design.NewAllocation(controlShare, 1-controlShare)
		if err != nil {
			return err
		}
		params, err := design.NewParameters(baselineRate, targetLiftPct, alphaFlag, powerFlag, alloc, dailyTraffic)
		if err != nil {
			return err
		}
		res, err := design.ComputeSampleSize(params)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

// #endregion size

// #region analyze
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a hypothesis test on observed counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		counts, err := outcome.NewCounts(controlN, controlConversions, treatmentN, treatmentConversions)
		if err != nil {
			return err
		}
		res, err := engine.Analyze(counts, alphaFlag, engine.TestType(testTypeFlag), stats.Tail(directionFlag))
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

// #endregion analyze

// #region decide
var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Analyze counts and produce a rollout verdict",
	RunE: func(cmd *cobra.Command, args []string) error {
		counts, err := outcome.NewCounts(controlN, controlConversions, treatmentN, treatmentConversions)
		if err != nil {
			return err
		}
		res, err := engine.Analyze(counts, alphaFlag, engine.TestType(testTypeFlag), stats.Tail(directionFlag))
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"analysis": res,
			"verdict":  decision.ForResult(res, targetLiftFlag),
		})
	},
}

// #endregion decide

// #region propose
var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Ask the scenario source for an experiment design",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY not configured")
		}
		src := scenario.NewLLMSource(cfg.OpenAIKey, cfg.OpenAIModel, scenario.DefaultBounds(), logger)

		sc, err := src.Propose(cmd.Context(), briefFlag)
		if err != nil {
			return err
		}
		params, err := sc.ToDesign()
		if err != nil {
			return err
		}
		size, err := design.ComputeSampleSize(params)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"scenario":    sc,
			"sample_size": size,
		})
	},
}

// #endregion propose

// #region helpers
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers

func init() {
	for _, cmd := range []*cobra.Command{sizeCmd, analyzeCmd, decideCmd} {
		cmd.Flags().Float64Var(&alphaFlag, "alpha", 0.05, "significance level")
	}

	sizeCmd.Flags().Float64Var(&baselineRate, "baseline", 0, "control arm conversion rate")
	sizeCmd.Flags().Float64Var(&targetLiftPct, "lift", 0, "relative lift to detect")
	sizeCmd.Flags().Float64Var(&powerFlag, "power", 0.8, "desired statistical power")
	sizeCmd.Flags().Float64Var(&controlShare, "control-share", 0.5, "traffic fraction for control")
	sizeCmd.Flags().IntVar(&dailyTraffic, "traffic", 0, "daily traffic across both arms")
	sizeCmd.MarkFlagRequired("baseline")
	sizeCmd.MarkFlagRequired("lift")
	sizeCmd.MarkFlagRequired("traffic")

	for _, cmd := range []*cobra.Command{analyzeCmd, decideCmd} {
		cmd.Flags().IntVar(&controlN, "control-n", 0, "control arm size")
		cmd.Flags().IntVar(&controlConversions, "control-conv", 0, "control arm conversions")
		cmd.Flags().IntVar(&treatmentN, "treatment-n", 0, "treatment arm size")
		cmd.Flags().IntVar(&treatmentConversions, "treatment-conv", 0, "treatment arm conversions")
		cmd.Flags().StringVar(&testTypeFlag, "test", "auto", "test to run: auto, z_test, chi_square, fisher_exact")
		cmd.Flags().StringVar(&directionFlag, "direction", "two_tailed", "one_tailed or two_tailed")
		cmd.MarkFlagRequired("control-n")
		cmd.MarkFlagRequired("treatment-n")
	}

	decideCmd.Flags().Float64Var(&targetLiftFlag, "target", 0, "minimum absolute lift the business needs")

	proposeCmd.Flags().StringVar(&briefFlag, "brief", "", "what the experiment should improve")
	proposeCmd.MarkFlagRequired("brief")
}
