package version

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/thushan/ngsiproxy/theme"
)

// Set at build time with -ldflags "-X github.com/thushan/ngsiproxy/internal/version.Version=..."
var (
	Name        = "ngsiproxy"
	Description = "NGSI context broker proxy for catalog resources"
	Version     = "v0.0.1"
	Commit      = "none"
	Date        = "nowish"
	User        = "local"
)

const HomeText = "github.com/thushan/ngsiproxy"

// Info is the build metadata served on the version endpoint
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	User      string `json:"user"`
	GoVersion string `json:"go_version"`
}

func Current() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		User:      User,
		GoVersion: runtime.Version(),
	}
}

// PrintVersionInfo writes the startup banner, with build details when extended
func PrintVersionInfo(extendedInfo bool, w io.Writer) {
	var b strings.Builder

	b.WriteString(theme.ColourSplash("  ▞▚ " + Name + " "))
	b.WriteString(theme.ColourVersion(Version))
	b.WriteString("\n")
	b.WriteString("     " + Description + "\n")
	b.WriteString("     " + HomeText + "\n")

	if extendedInfo {
		fmt.Fprintf(&b, " Commit: %s\n", Commit)
		fmt.Fprintf(&b, "  Built: %s\n", Date)
		fmt.Fprintf(&b, "  Using: %s\n", User)
		fmt.Fprintf(&b, "     Go: %s\n", runtime.Version())
	}

	_, _ = io.WriteString(w, b.String())
}
