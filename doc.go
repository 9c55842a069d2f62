// Package kproc is a hosted teaching kernel: a process table with fork,
// exit, wait and kill, pluggable CPU scheduling (round robin, FCFS,
// priority based and multi-level feedback queue), per-process tick
// accounting and copy-on-write fork over simulated physical memory.
//
// Processes are Go functions driven by the kernel one CPU at a time. The
// root package assembles a machine from a Config:
//
//	srv, _ := kproc.New(kproc.WithConfig(config), kproc.WithWorkload(w))
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	<-rt.InitDone()
//	records, _ := rt.History(ctx)
//	_ = rt.Shutdown(ctx)
package kproc
