// Package logger wraps zap for the whole tool:
//   - a global sugared logger writing to stderr, so stdout carries only reports,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and switching,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Services receive a context and pull the logger out of it, which keeps
// operation names and installation paths attached to every line.
package logger
