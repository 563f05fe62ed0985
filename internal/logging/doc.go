// Package logging provides structured logging for herobot.
//
// Every entry is a JSON line produced by log/slog. Child loggers carry
// persistent attributes so each line can be traced back to the process run
// and the loop that emitted it:
//
//	logger, err := logging.NewLogger(logging.Options{Level: "info"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	log := logger.WithRun(runID).WithComponent("dispatch")
//	log.Error("send failed", "op", "sendMessage", "error", err)
//
// Output:
//
//	{"time":"...","level":"ERROR","msg":"send failed","run_id":"...","component":"dispatch","op":"sendMessage","error":"..."}
//
// When Options.File is set the log is written through a [RotatingWriter]
// that renames the file to herobot.log.1, .2, ... once it exceeds
// RotationConfig.MaxSizeMB. Tests use [NopLogger].
package logging
