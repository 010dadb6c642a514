package recorder

import (
	"os"
	"os/signal"
	"syscall"
)

// abnormalSignals are the termination signals on which the trace must
// still be sealed. SIGKILL cannot be caught and is not listed. A
// synchronous SIGSEGV raised by Go code becomes a runtime panic before
// any handler runs; the entry here covers faults delivered from
// non-Go code in the traced process.
var abnormalSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGQUIT,
	syscall.SIGSEGV,
	syscall.SIGABRT,
	syscall.SIGTERM,
	syscall.SIGILL,
	syscall.SIGFPE,
}

// installSignalHandlers arranges for the trace to be sealed on
// abnormal termination. Go delivers caught signals on an ordinary
// goroutine, so the teardown here runs outside any restricted
// signal-handler context; the handler itself only requests shutdown,
// and the real teardown is the same exactly-once Close that the
// normal exit path uses.
func (r *Recorder) installSignalHandlers() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, abnormalSignals...)

	go func() {
		sig := <-ch

		r.log.WithField("signal", sig.String()).
			Error("Abnormal termination, sealing trace")

		if err := r.Close(); err != nil {
			r.log.WithError(err).Error("Sealing trace on signal failed")
		}

		code := 128
		if s, ok := sig.(syscall.Signal); ok {
			code += int(s)
		}

		os.Exit(code)
	}()
}
