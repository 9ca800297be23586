// Package workers determines worker pool sizes that respect container CPU
// limits.
//
// runtime.NumCPU() reports the host's CPU count even under cgroup limits,
// so pool sizing here is derived from GOMAXPROCS, which Go 1.19+ sets from
// the container limit. The scan pipeline uses ForIO since extraction time
// is dominated by waiting on the model services; operators can override the
// calculation with the SCAN_WORKERS environment variable.
package workers
