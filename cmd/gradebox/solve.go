package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/itstheanurag/gradebox/internal/executor"
	"github.com/itstheanurag/gradebox/internal/languages"
	"github.com/itstheanurag/gradebox/internal/problems"
	"github.com/itstheanurag/gradebox/internal/server"
	"github.com/spf13/cobra"
)

var errNotAllPassed = errors.New("not all test cases passed")

var (
	problemFlag    string
	solutionFlag   string
	languageFlag   string
	showHiddenFlag bool
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Grade a solution file against a problem package",
	Long: `Grade a solution against the sample test cases of a problem package and,
when they all pass, its hidden test cases. The result is printed as JSON and
the command exits non-zero unless every case passed.

The package is a JSON or YAML file with problemText, sampleTestCases and
hiddenTestCases.

Examples:
  gradebox solve --problem two-sum.json --solution solution.js
  gradebox solve --problem two-sum.yaml --solution solution.py --language python --show-hidden`,
	RunE: runSolve,
}

func init() {
	solveCmd.Flags().StringVar(&problemFlag, "problem", "", "Problem package file (JSON or YAML)")
	solveCmd.Flags().StringVar(&solutionFlag, "solution", "", "Solution source file")
	solveCmd.Flags().StringVar(&languageFlag, "language", "javascript", "Solution language (typescript, javascript, python)")
	solveCmd.Flags().BoolVar(&showHiddenFlag, "show-hidden", false, "Run and print hidden test case results")
	_ = solveCmd.MarkFlagRequired("problem")
	_ = solveCmd.MarkFlagRequired("solution")
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	conf, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(conf.Log.Level)

	lang, err := languages.Parse(languageFlag)
	if err != nil {
		return err
	}
	pkg, err := problems.LoadPackage(problemFlag)
	if err != nil {
		return err
	}
	code, err := os.ReadFile(solutionFlag)
	if err != nil {
		return fmt.Errorf("reading solution: %w", err)
	}

	exec, err := server.NewExecutor(conf, nil, &logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := exec.EnsureImages(ctx); err != nil {
		return fmt.Errorf("ensuring sandbox images: %w", err)
	}

	out, err := executor.Solve(ctx, exec.Run, executor.SolveRequest{
		Package:      pkg,
		SolutionCode: string(code),
		Language:     lang,
		ShowHidden:   showHiddenFlag,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if !out.Summary.AllPassed {
		return errNotAllPassed
	}
	return nil
}
