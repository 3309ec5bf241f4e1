package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path"
	"regexp"
	"strings"
)

// toolchainPrefixLen bounds how much of the toolchain name ends up in the
// readable part of an identity.
const toolchainPrefixLen = 24

var unsafeChars = regexp.MustCompile(`[^a-z0-9_]+`)

// Input is everything that distinguishes one run from another.
type Input struct {
	Benchmark     string `json:"benchmark"`
	Machine       string `json:"machine"`
	Toolchain     string `json:"toolchain"`
	CompilerFlags string `json:"compiler_flags"`
	LinkFlags     string `json:"link_flags"`
	RunFlags      string `json:"run_flags"`
	Discriminator string `json:"discriminator"`
}

// New returns a filesystem-safe run identity. The readable prefix is built
// from the benchmark, toolchain and machine names; the 8 hex character
// suffix is a SHA-256 over every field of in, so any change to the input
// yields a different identity.
func New(in Input) string {
	parts := []string{
		in.Benchmark,
		ToolchainName(in.Toolchain),
		in.Machine,
	}
	readable := sanitize(strings.Join(parts, "_"))

	return readable + "_" + checksum(in)
}

// ToolchainName is the last path segment of the toolchain, truncated.
func ToolchainName(toolchain string) string {
	name := path.Base(strings.TrimRight(toolchain, "/"))
	if name == "." || name == "/" {
		name = ""
	}
	if len(name) > toolchainPrefixLen {
		name = name[:toolchainPrefixLen]
	}
	return name
}

func sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(strings.ToLower(s), "")
	s = strings.Trim(s, "_")
	if s == "" {
		return "run"
	}
	return s
}

// checksum hashes the canonical JSON of in. Struct field order makes the
// encoding stable.
func checksum(in Input) string {
	b, err := json.Marshal(in)
	if err != nil {
		// Input holds only strings
		panic(err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:8]
}
