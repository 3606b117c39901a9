package tools

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/hakim/reconsweep/internal/reconerr"
)

// ToolRequirement represents an external tool dependency
type ToolRequirement struct {
	Name         string   // Display name
	Binary       string   // Executable name or path
	Alternatives []string // Other executables that satisfy the requirement
	Required     bool     // Whether the tool is required
	InstallCmd   string   // Installation command
	Purpose      string   // One-line description
}

// CheckResult represents the result of checking a single tool
type CheckResult struct {
	Tool    ToolRequirement
	Found   bool
	Path    string
	Version string
}

// catalog describes every external tool reconsweep knows how to drive
var catalog = []ToolRequirement{
	{
		Name:       "whois",
		Binary:     "whois",
		InstallCmd: "apt install whois (or brew install whois on macOS)",
		Purpose:    "Domain registration lookup",
	},
	{
		Name:       "subfinder",
		Binary:     "subfinder",
		InstallCmd: "go install -v github.com/projectdiscovery/subfinder/v2/cmd/subfinder@latest",
		Purpose:    "Passive subdomain enumeration",
	},
	{
		Name:       "assetfinder",
		Binary:     "assetfinder",
		InstallCmd: "go install github.com/tomnomnom/assetfinder@latest",
		Purpose:    "Passive subdomain enumeration",
	},
	{
		Name:       "tlsx",
		Binary:     "tlsx",
		InstallCmd: "go install -v github.com/projectdiscovery/tlsx/cmd/tlsx@latest",
		Purpose:    "TLS certificate subdomain discovery",
	},
	{
		Name:       "httprobe",
		Binary:     "httprobe",
		InstallCmd: "go install github.com/tomnomnom/httprobe@latest",
		Purpose:    "HTTP liveness probing",
	},
	{
		Name:       "httpx",
		Binary:     "httpx",
		InstallCmd: "go install -v github.com/projectdiscovery/httpx/cmd/httpx@latest",
		Purpose:    "HTTP liveness probing",
	},
	{
		Name:       "gowitness",
		Binary:     "gowitness",
		InstallCmd: "go install github.com/sensepost/gowitness@latest",
		Purpose:    "Screenshot capture",
	},
	{
		Name:         "chrome",
		Binary:       "chromium",
		Alternatives: []string{"chromium-browser", "google-chrome", "google-chrome-stable"},
		InstallCmd:   "apt install chromium",
		Purpose:      "Headless browser for chromedp screenshots",
	},
}

// DefaultTools returns every tool reconsweep can use, none marked required
func DefaultTools() []ToolRequirement {
	out := make([]ToolRequirement, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalogue entry for name, marked required. binary
// overrides the executable when non-empty (a configured path).
func Lookup(name, binary string) (ToolRequirement, bool) {
	for _, t := range catalog {
		if t.Name != name {
			continue
		}
		t.Required = true
		if binary != "" && binary != t.Binary {
			t.Binary = binary
			t.Alternatives = nil
		}
		return t, true
	}
	return ToolRequirement{}, false
}

// Preflight verifies every required tool is invocable. All missing tools
// are reported together in a *reconerr.MissingDependencyError.
func Preflight(reqs []ToolRequirement) error {
	var missing []string
	for _, req := range reqs {
		if !req.Required {
			continue
		}
		if _, ok := resolve(req); !ok {
			missing = append(missing, req.Name)
		}
	}
	if len(missing) > 0 {
		return &reconerr.MissingDependencyError{Tools: missing}
	}
	return nil
}

// CheckTools checks all tools in the provided list
func CheckTools(tools []ToolRequirement) []CheckResult {
	results := make([]CheckResult, len(tools))
	for i, tool := range tools {
		results[i] = CheckTool(tool)
	}
	return results
}

// CheckTool checks if a single tool is available
func CheckTool(tool ToolRequirement) CheckResult {
	result := CheckResult{
		Tool:  tool,
		Found: false,
	}

	path, ok := resolve(tool)
	if !ok {
		return result
	}

	result.Found = true
	result.Path = path
	result.Version = getVersion(path)

	return result
}

// resolve finds the first invocable executable for the requirement
func resolve(tool ToolRequirement) (string, bool) {
	for _, bin := range append([]string{tool.Binary}, tool.Alternatives...) {
		if bin == "" {
			continue
		}
		if path, err := exec.LookPath(bin); err == nil {
			return path, true
		}
	}
	return "", false
}

// getVersion attempts to get the version of a tool
func getVersion(binary string) string {
	versionFlags := []string{"--version", "-version", "-v", "version"}

	for _, flag := range versionFlags {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		cmd := exec.CommandContext(ctx, binary, flag)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		err := cmd.Run()
		cancel()
		if err == nil && out.Len() > 0 {
			firstLine := strings.Split(out.String(), "\n")[0]
			version := strings.TrimSpace(firstLine)
			if len(version) > 50 {
				version = version[:50] + "..."
			}
			return version
		}
	}

	return "unknown"
}
