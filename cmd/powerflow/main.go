package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"powerflow/pkg/network"
	"powerflow/pkg/newton"
	"powerflow/pkg/util"
)

var (
	flagTolerance    float64
	flagMaxIter      int
	flagAlgorithm    string
	flagDistSlack    bool
	flagTDPF         bool
	flagTDPFDelay    float64
	flagVoltageLoads bool
	flagGeneric      bool
	flagVerbose      bool
	flagPlotOut      string
)

func solveOptions() newton.Options {
	opts := newton.DefaultOptions()
	opts.Tolerance = flagTolerance
	opts.MaxIterations = flagMaxIter
	opts.Algorithm = flagAlgorithm
	opts.DistributedSlack = flagDistSlack
	opts.TDPF = flagTDPF
	opts.TDPFDelaySeconds = flagTDPFDelay
	opts.VoltageDependLoads = flagVoltageLoads
	opts.FastJacobian = !flagGeneric
	return opts
}

func runSolve(cmd *cobra.Command, args []string) error {
	cs, err := network.LoadCase(args[0])
	if err != nil {
		return err
	}

	res, err := newton.Solve(cs, solveOptions())
	if err != nil {
		return err
	}
	if res.J != nil {
		res.J.Destroy()
	}
	printResults(cs, res)
	if !res.Converged {
		os.Exit(2)
	}
	return nil
}

func printResults(cs *network.Case, res *newton.Result) {
	fmt.Printf("\nPower Flow Results: %s\n", cs.Name)
	fmt.Println("===================")
	fmt.Printf("Converged:    %v\n", res.Converged)
	fmt.Printf("Iterations:   %d\n", res.Iterations)
	fmt.Printf("Max mismatch: %.3e pu\n", res.MaxMismatch)

	fmt.Println("\nBus voltages:")
	for i, b := range cs.Buses {
		fmt.Printf("  %s\n", util.FormatMagnitudePhase(fmt.Sprintf("V%d", i), b.Vm, b.Va))
	}

	if res.Slack != 0 {
		fmt.Printf("\nDistributed slack: %s\n", util.FormatValueFactor(res.Slack*cs.BaseMVA*1e6, "W"))
	}
	for i, s := range cs.SVCs {
		fmt.Printf("SVC %d: firing angle %.4f rad, Q %.4f pu\n", i, s.FiringAngle, s.QPu)
	}
	for i, t := range cs.TCSCs {
		fmt.Printf("TCSC %d: firing angle %.4f rad, P(to) %.4f pu, X %.4f pu\n", i, t.FiringAngle, t.PT, t.XPu)
	}
	for i, tc := range res.TemperaturesC {
		fmt.Printf("Thermal line %d: %.1f degC\n", i, tc)
	}
}

func runTrace(cmd *cobra.Command, args []string) error {
	cs, err := network.LoadCase(args[0])
	if err != nil {
		return err
	}

	opts := solveOptions()
	opts.VDebug = true
	res, err := newton.Solve(cs, opts)
	if err != nil {
		return err
	}
	if res.J != nil {
		res.J.Destroy()
	}

	if err := writeTracePlot(flagPlotOut, res); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d iterations, converged=%v)\n", flagPlotOut, res.Iterations, res.Converged)
	return nil
}

func main() {
	root := &cobra.Command{
		Use:   "powerflow",
		Short: "Newton-Raphson AC power flow solver",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagVerbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().Float64Var(&flagTolerance, "tol", 1e-8, "convergence tolerance, pu")
	root.PersistentFlags().IntVar(&flagMaxIter, "max-iter", 10, "iteration cap")
	root.PersistentFlags().StringVar(&flagAlgorithm, "algorithm", newton.AlgorithmNR, "nr or iwamoto_nr")
	root.PersistentFlags().BoolVar(&flagDistSlack, "dist-slack", false, "distribute slack by participation factor")
	root.PersistentFlags().BoolVar(&flagTDPF, "tdpf", false, "temperature-dependent power flow")
	root.PersistentFlags().Float64Var(&flagTDPFDelay, "tdpf-delay", 0, "thermal delay in seconds, 0 = steady state")
	root.PersistentFlags().BoolVar(&flagVoltageLoads, "voltage-depend-loads", false, "ZIP load voltage dependence")
	root.PersistentFlags().BoolVar(&flagGeneric, "generic-jacobian", false, "force the generic Jacobian assembly")
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "per-iteration logging")

	solveCmd := &cobra.Command{
		Use:   "solve <case.yaml>",
		Short: "Run the power flow and print bus results",
		Args:  cobra.ExactArgs(1),
		RunE:  runSolve,
	}

	traceCmd := &cobra.Command{
		Use:   "trace <case.yaml>",
		Short: "Run the power flow and plot the convergence trace",
		Args:  cobra.ExactArgs(1),
		RunE:  runTrace,
	}
	traceCmd.Flags().StringVarP(&flagPlotOut, "out", "o", "trace.png", "output image path")

	root.AddCommand(solveCmd, traceCmd)
	if err := root.Execute(); err != nil {
		logrus.Fatal(err)
	}
}
