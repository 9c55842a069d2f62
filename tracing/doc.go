// Package tracing wraps OpenTelemetry so that kernel code can open spans
// around lifecycle system calls without importing the upstream packages.
// Until Init or InitWithExporter installs a provider every span is a no-op.
package tracing
