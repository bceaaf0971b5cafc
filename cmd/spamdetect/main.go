// Command spamdetect classifies emails as spam or ham from the command line,
// a terminal UI or an HTTP service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"spamdetect/apperr"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "spamdetect",
	Short: "Email spam detector (TF-IDF + linear model)",
	Long: `spamdetect labels email text as spam or ham using a pre-trained model and
TF-IDF vectorizer.

Run a single text with "classify", a CSV file with "batch", or start the
interactive terminal UI with "tui".`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var classifyCmd = &cobra.Command{
	Use:   "classify [text...]",
	Short: "Classify one email text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

var batchCmd = &cobra.Command{
	Use:   "batch [csv]",
	Short: "Classify every row of a CSV file with a 'text' column",
	Long: `Reads the CSV, classifies the 'text' column of every row and writes
<name>_predicted.csv next to it with an added Prediction column.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

var performanceCmd = &cobra.Command{
	Use:   "performance",
	Short: "Show accuracy and confusion matrix on the held-out set",
	Args:  cobra.NoArgs,
	RunE:  runPerformance,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent single-text predictions",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the interactive terminal UI",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API, websocket progress feed and metrics",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var (
	savePath     string
	historyLimit int
	servePort    int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	classifyCmd.Flags().StringVar(&savePath, "save", "", "Save the result as CSV to this path")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of predictions to show")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides http.port)")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(performanceCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, apperr.Message(err))
		os.Exit(1)
	}
}
