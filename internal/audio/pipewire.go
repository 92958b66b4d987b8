package audio

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// PipeWire lists and validates PipeWire capture nodes through pw-link
type PipeWire struct {
	// LinkCommand overrides the pw-link binary
	LinkCommand string
}

// NewPipeWire creates a new PipeWire instance
func NewPipeWire() *PipeWire {
	return &PipeWire{LinkCommand: "pw-link"}
}

// ListPorts returns the output ports of the PipeWire graph, which are the
// ports audio can be captured from.
func (pw *PipeWire) ListPorts() ([]string, error) {
	cmd := exec.Command(pw.linkCommand(), "-o")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list PipeWire ports: %w", err)
	}
	return parsePorts(string(output)), nil
}

// ListNodes returns the distinct node names owning output ports
func (pw *PipeWire) ListNodes() ([]string, error) {
	ports, err := pw.ListPorts()
	if err != nil {
		return nil, err
	}
	return nodesFromPorts(ports), nil
}

// ValidateNode checks that a capture node exists. Empty and "default"
// select the default source and are always valid.
func (pw *PipeWire) ValidateNode(node string) error {
	if node == "" || node == "default" {
		return nil
	}

	ports, err := pw.ListPorts()
	if err != nil {
		return err
	}
	return validateNodeInList(node, ports)
}

func (pw *PipeWire) linkCommand() string {
	if pw.LinkCommand == "" {
		return "pw-link"
	}
	return pw.LinkCommand
}

func parsePorts(output string) []string {
	var ports []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "Input ports:") && !strings.HasPrefix(line, "Output ports:") {
			ports = append(ports, line)
		}
	}
	return ports
}

// nodesFromPorts strips the port name from "node:port" entries and removes
// repeated nodes, keeping the first-seen order.
func nodesFromPorts(ports []string) []string {
	seen := make(map[string]bool)
	var nodes []string
	for _, port := range ports {
		node := port
		if i := strings.LastIndex(port, ":"); i > 0 {
			node = port[:i]
		}
		if !seen[node] {
			seen[node] = true
			nodes = append(nodes, node)
		}
	}
	return nodes
}

func validateNodeInList(node string, ports []string) error {
	for _, n := range nodesFromPorts(ports) {
		if n == node {
			return nil
		}
	}
	slog.Debug("PipeWire node not found", "node", node, "ports", len(ports))
	return fmt.Errorf("capture source not found: %s", node)
}
