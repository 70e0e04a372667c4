package supervisor

import (
	"os"
	"os/exec"
	"sort"
	"strings"
)

// ChildSpec describes one process to be launched by the supervisor.
// It is built once from configuration and never mutated afterwards.
type ChildSpec struct {
	Name    string            `json:"name"`     // logical name used for log prefixes ("api", "ui")
	Command []string          `json:"command"`  // argv; Command[0] is the executable
	WorkDir string            `json:"work_dir"` // optional working directory
	Env     map[string]string `json:"env"`      // overrides merged over the inherited environment
	LogPath string            `json:"log_path"` // optional durable log sink; empty disables the file sink
}

// BuildCommand constructs the child's *exec.Cmd. The child's environment
// is the supervisor's own environment with spec.Env merged over it.
func (s *ChildSpec) BuildCommand() *exec.Cmd {
	// #nosec G204 -- commands come from local configuration
	cmd := exec.Command(s.Command[0], s.Command[1:]...)
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}
	cmd.Env = mergeEnv(os.Environ(), s.Env)
	return cmd
}

// mergeEnv overlays kv pairs from overrides onto base ("K=V" form).
// Override keys replace inherited values; new keys are appended sorted
// so the result is deterministic.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(overrides))
	for _, kv := range base {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			out = append(out, kv)
			continue
		}
		k := kv[:i]
		if v, ok := overrides[k]; ok {
			out = append(out, k+"="+v)
			seen[k] = true
			continue
		}
		out = append(out, kv)
	}
	rest := make([]string, 0, len(overrides))
	for k, v := range overrides {
		if !seen[k] {
			rest = append(rest, k+"="+v)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
