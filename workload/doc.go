// Package workload describes a set of named programs in a small line
// oriented language and compiles them into kernel programs.
//
// A document names the first program and lists the others:
//
//	init: main
//	programs:
//	  main:
//	    - fork worker x3
//	    - wait all
//	  worker:
//	    - loop 4
//	    - spin 100
//	    - sleep 2
//	    - end
//	    - exit 0
//
// The init program keeps reaping orphans once its own ops are done.
package workload
