package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"spamdetect/classifier"
	"spamdetect/export"
	qhttp "spamdetect/http"
	"spamdetect/monitoring"
	"spamdetect/progress"
	"spamdetect/ui"
)

func runClassify(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	text := strings.Join(args, " ")
	label, err := a.svc.Detect(contextOf(cmd), text)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Prediction: %s\n", label.Display())

	if savePath != "" {
		if err := a.svc.Save(text, label, savePath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Result saved to: %s\n", export.Destination(savePath))
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer a.svc.Subscribe(newProgressPrinter(cmd.ErrOrStderr()))()
	out, err := a.svc.Batch(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Completed! Results saved to: %s\n", out)
	return nil
}

func runPerformance(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.svc.Performance(contextOf(cmd))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), classifier.FormatPerformance(m))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	predictions, err := a.svc.History(historyLimit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tLABEL\tTEXT")
	for _, p := range predictions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.CreatedAt.Local().Format("2006-01-02 15:04:05"), p.Label, preview(p.Text, 60))
	}
	return w.Flush()
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := newApp(io.Discard)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(contextOf(cmd))
	defer cancel()
	a.watch(ctx)

	theme := ui.ThemeName(a.cfg.UI.Theme)
	if theme == "" || theme == "auto" {
		theme = ui.DetectTheme()
	}
	footer := fmt.Sprintf("Model: %s | TF-IDF", a.cfg.Artifacts.ModelType)

	program := tea.NewProgram(ui.NewModel(ctx, a.svc, theme, footer), tea.WithAltScreen(), tea.WithContext(ctx))
	defer a.svc.Subscribe(ui.NewObserver(program.Send))()

	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a.watch(ctx)

	hub := monitoring.NewHub(a.log.Named("ws"))
	go hub.Run(ctx)
	defer a.svc.Subscribe(hub)()

	serverCfg := qhttp.DefaultServerConfig()
	serverCfg.Port = a.cfg.Http.Port
	if servePort > 0 {
		serverCfg.Port = servePort
	}
	if a.cfg.Http.Timeout > 0 {
		serverCfg.Timeout = a.cfg.Http.Timeout
	}
	serverCfg.BatchDir = a.cfg.Http.BatchDir
	if serverCfg.BatchDir != "" {
		if err := os.MkdirAll(serverCfg.BatchDir, 0o755); err != nil {
			return err
		}
	}
	server := qhttp.NewServer(serverCfg, a.svc, hub, a.metrics, a.log.Named("http"))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.log.Info("shutting down")
	return server.Stop(context.Background())
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// progressPrinter writes a line to w every time a batch crosses another
// tenth of its rows, plus the terminal status.
type progressPrinter struct {
	w    io.Writer
	last int
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, last: -1}
}

func (p *progressPrinter) Observe(e progress.Event) {
	switch e.Type {
	case progress.EventProgress:
		decile := int(e.State.Fraction() * 10)
		if decile != p.last {
			p.last = decile
			fmt.Fprintf(p.w, "%3d%% %s\n", decile*10, e.State.Status)
		}
	case progress.EventFailed:
		fmt.Fprintf(p.w, "failed: %s\n", e.Message)
	}
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
