// Command kproc boots a machine, runs a workload and prints what happened.
//
//	kproc -workload schedulertest.yaml [-config kproc.yaml] [-ticks N] [-dump URL]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/viant/kproc"
	"github.com/viant/kproc/progress"
	"github.com/viant/kproc/workload"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "kproc:", err)
		os.Exit(1)
	}
}

type options struct {
	config   string
	workload string
	ticks    uint64
	dump     string
}

func parseOptions(args []string) (*options, error) {
	ret := &options{}
	flags := flag.NewFlagSet("kproc", flag.ContinueOnError)
	flags.StringVar(&ret.config, "config", "", "machine config URL (YAML)")
	flags.StringVar(&ret.workload, "workload", "", "workload URL (YAML)")
	flags.Uint64Var(&ret.ticks, "ticks", 0, "stop once uptime reaches N ticks; 0 waits for init")
	flags.StringVar(&ret.dump, "dump", "", "write the process dump to URL instead of stdout")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if ret.workload == "" {
		return nil, fmt.Errorf("-workload is required")
	}
	return ret, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseOptions(args)
	if err != nil {
		return err
	}
	config := kproc.DefaultConfig()
	if opts.config != "" {
		if config, err = kproc.LoadConfig(ctx, opts.config); err != nil {
			return err
		}
	}
	w, err := workload.Load(ctx, opts.workload)
	if err != nil {
		return err
	}
	srv, err := kproc.New(kproc.WithConfig(config), kproc.WithWorkload(w))
	if err != nil {
		return err
	}
	rt := srv.Runtime()
	if err = rt.Start(ctx); err != nil {
		return err
	}
	halted := awaitStop(ctx, rt, opts.ticks)

	if opts.dump != "" {
		err = rt.DumpTo(ctx, opts.dump)
	} else {
		fmt.Fprintln(stdout, "procdump:")
		err = rt.WriteDump(stdout)
	}
	if err != nil {
		return err
	}
	if err = printHistory(ctx, rt, stdout); err != nil {
		return err
	}
	stats := rt.Stats()
	fmt.Fprintf(stdout, "boot %s: uptime %d ticks, %d forks, %d reaps, %d kills, %d faults, %d cow faults, %d switches\n",
		rt.BootID(), rt.Uptime(), stats.Forks, stats.Reaps, stats.Kills, stats.Faults, stats.CowFaults, stats.Switches)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shutdownErr := rt.Shutdown(shutdownCtx)
	if halted {
		return rt.Wait(context.Background())
	}
	if errors.Is(shutdownErr, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown timed out")
	}
	return shutdownErr
}

// awaitStop blocks until init is done, the uptime limit is reached, the
// machine halts on its own or ctx is cancelled. It reports a halt.
func awaitStop(ctx context.Context, rt *kproc.Runtime, ticks uint64) bool {
	stop := rt.InitDone()
	if ticks > 0 {
		reached := make(chan struct{})
		var once sync.Once
		rt.OnStats(func(stats progress.Stats) {
			if uint64(stats.Ticks) >= ticks {
				once.Do(func() { close(reached) })
			}
		})
		stop = reached
	}
	select {
	case <-stop:
		return false
	case <-rt.Halted():
		return true
	case <-ctx.Done():
		return false
	}
}

func printHistory(ctx context.Context, rt *kproc.Runtime, stdout io.Writer) error {
	records, err := rt.History(ctx)
	if err != nil {
		return err
	}
	writer := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "PID\tPPID\tNAME\tSTATUS\tKILLED\tRTIME\tWTIME\tSCHED")
	for _, record := range records {
		fmt.Fprintf(writer, "%d\t%d\t%s\t%d\t%v\t%d\t%d\t%d\n", record.PID, record.ParentPID, record.Name,
			record.Status, record.Killed, record.RunTicks, record.WaitTicks, record.Scheduled)
	}
	return writer.Flush()
}
