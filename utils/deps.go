package utils

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement is an external program the pipeline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
}

type Status struct {
	Requirement
	Path      string
	Available bool
	Detail    string
}

func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{Requirement: req}
		cmd := strings.TrimSpace(req.Command)
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Path = path
		status.Available = true
		results = append(results, status)
	}
	return results
}
