package util

import (
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
)

// https://no-color.org/ and https://force-color.org/
const (
	envNoColor     = "NO_COLOR"
	envForceColor  = "FORCE_COLOR"
	envForceColors = "NGSIPROXY_FORCE_COLORS"
)

// ColoursEnabled reports whether output to f should carry ANSI colours.
// NO_COLOR wins over any force setting, a tty is the fallback.
func ColoursEnabled(f *os.File) bool {
	if os.Getenv(envNoColor) != "" {
		return false
	}
	for _, key := range []string{envForceColor, envForceColors} {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			on, err := strconv.ParseBool(v)
			// FORCE_COLOR=3 and friends mean on
			return err != nil || on
		}
	}
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ShouldUseColors is ColoursEnabled for stdout, where the logs go
func ShouldUseColors() bool {
	return ColoursEnabled(os.Stdout)
}
